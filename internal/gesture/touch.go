package gesture

import (
	"sort"
	"time"

	"github.com/ayusman/gestosongs/internal/clock"
	"github.com/ayusman/gestosongs/internal/detector"
)

// DefaultThreshold is the fingertip to thumb-tip distance, in pixels, below
// which a finger counts as touching.
const DefaultThreshold = 40.0

// Event reports a gesture that started this tick.
type Event struct {
	Note      string
	Mapping   Mapping
	Hand      Hand
	HandIndex int
	Landmark  int
	At        time.Time
}

// Detection is the result of one Detect call.
type Detection struct {
	// Active holds the landmark ids touching the thumb this tick, ascending.
	Active []int
	// Started holds one event per touch that was not present last tick.
	Started []Event
}

// TouchDetector finds fingertip to thumb-tip touches and reports each one
// once, on the tick the contact begins. State is kept per hand index.
// Not safe for concurrent use.
type TouchDetector struct {
	threshold float64
	clock     clock.Clock
	active    map[int]map[int]struct{}
	notes     map[string]time.Time
}

// NewTouchDetector creates a detector. A non-positive threshold uses
// DefaultThreshold; a nil clock uses the wall clock.
func NewTouchDetector(threshold float64, clk clock.Clock) *TouchDetector {
	if clk == nil {
		clk = clock.Real{}
	}
	d := &TouchDetector{
		clock:  clk,
		active: make(map[int]map[int]struct{}),
		notes:  make(map[string]time.Time),
	}
	d.SetThreshold(threshold)
	return d
}

// SetThreshold changes the touch distance. Non-positive values reset it to
// DefaultThreshold.
func (d *TouchDetector) SetThreshold(px float64) {
	if px <= 0 {
		px = DefaultThreshold
	}
	d.threshold = px
}

// Threshold returns the touch distance in pixels.
func (d *TouchDetector) Threshold() float64 {
	return d.threshold
}

// Detect measures every configured landmark of hand against its thumb tip in
// a frame of width x height pixels and replaces the touch state for
// handIndex. A nil hand or an empty frame size leaves the state alone.
func (d *TouchDetector) Detect(hand *detector.HandLandmarks, handIndex int, gestures HandGestures, width, height int) Detection {
	if hand == nil || width <= 0 || height <= 0 {
		return Detection{}
	}

	prev := d.active[handIndex]
	current := make(map[int]struct{}, len(gestures))
	var det Detection
	now := d.clock.Now()

	for _, id := range gestures.Landmarks() {
		if id == detector.ThumbTip {
			continue
		}
		dist, ok := hand.PixelDistance(id, detector.ThumbTip, width, height)
		if !ok || dist >= d.threshold {
			continue
		}

		current[id] = struct{}{}
		det.Active = append(det.Active, id)

		if _, was := prev[id]; was {
			continue
		}
		m := gestures[id]
		d.notes[m.Note] = now
		det.Started = append(det.Started, Event{
			Note:      m.Note,
			Mapping:   m,
			Hand:      Hand(hand.Handedness),
			HandIndex: handIndex,
			Landmark:  id,
			At:        now,
		})
	}

	d.active[handIndex] = current
	return det
}

// ActiveGestures returns the touching landmark ids from the last Detect call
// for handIndex, ascending. Unknown hand indexes return nil.
func (d *TouchDetector) ActiveGestures(handIndex int) []int {
	set := d.active[handIndex]
	if len(set) == 0 {
		return nil
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ClearOldNotes drops recently played notes older than maxAge. The table only
// drives visual highlighting.
func (d *TouchDetector) ClearOldNotes(maxAge time.Duration) {
	now := d.clock.Now()
	for note, at := range d.notes {
		if now.Sub(at) > maxAge {
			delete(d.notes, note)
		}
	}
}

// RecentNotes returns the notes still in the highlight table, sorted.
func (d *TouchDetector) RecentNotes() []string {
	out := make([]string, 0, len(d.notes))
	for note := range d.notes {
		out = append(out, note)
	}
	sort.Strings(out)
	return out
}

// Reset forgets all touch and note state.
func (d *TouchDetector) Reset() {
	clear(d.active)
	clear(d.notes)
}
