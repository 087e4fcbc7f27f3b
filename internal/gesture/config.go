// Package gesture turns hand landmarks into musical gestures: fingertip to
// thumb-tip touches, the per-hand note configuration, and the table that maps
// a note back to the gesture that plays it.
package gesture

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/gestosongs/internal/detector"
)

// Hand is a handedness label as reported by the hand tracker.
type Hand string

const (
	Left  Hand = "Left"
	Right Hand = "Right"
)

// HandOrder is the fixed order in which hands are processed when building
// bindings. Later hands win conflicts.
var HandOrder = []Hand{Left, Right}

// ParseHand converts a tracker handedness label to a Hand.
func ParseHand(label string) (Hand, bool) {
	switch Hand(label) {
	case Left, Right:
		return Hand(label), true
	}
	return "", false
}

// Mapping is what one gesture produces: a sound reference and a note name.
type Mapping struct {
	Sound string `json:"sound" toml:"sound" yaml:"sound"`
	Note  string `json:"note" toml:"note" yaml:"note"`
}

// HandGestures maps landmark id to the mapping it triggers.
type HandGestures map[int]Mapping

// Landmarks returns the configured landmark ids in ascending order.
func (g HandGestures) Landmarks() []int {
	ids := make([]int, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Config is the gesture configuration for every hand.
type Config map[Hand]HandGestures

var (
	ErrUnknownHand     = errors.New("unknown hand")
	ErrInvalidLandmark = errors.New("invalid landmark")
	ErrEmptyNote       = errors.New("empty note name")
)

// Validate checks that every entry names a known hand, a non-thumb landmark
// and a note.
func (c Config) Validate() error {
	for hand, gestures := range c {
		if _, ok := ParseHand(string(hand)); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownHand, hand)
		}
		for _, id := range gestures.Landmarks() {
			if !detector.ValidLandmark(id) || id == detector.ThumbTip {
				return fmt.Errorf("%s hand: %w: %d", hand, ErrInvalidLandmark, id)
			}
			if gestures[id].Note == "" {
				return fmt.Errorf("%s hand landmark %d: %w", hand, id, ErrEmptyNote)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for hand, gestures := range c {
		g := make(HandGestures, len(gestures))
		for id, m := range gestures {
			g[id] = m
		}
		out[hand] = g
	}
	return out
}

// Sounds returns every distinct sound reference, sorted.
func (c Config) Sounds() []string {
	seen := make(map[string]struct{})
	for _, gestures := range c {
		for _, m := range gestures {
			if m.Sound != "" {
				seen[m.Sound] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
