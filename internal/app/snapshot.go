package app

import (
	"time"

	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

// Renderer receives the snapshot of every tick. Implementations must return
// quickly; slow outputs should hand the snapshot to their own goroutine.
type Renderer interface {
	Render(Snapshot)
}

// FrameSink receives JPEG encoded camera frames.
type FrameSink interface {
	PublishFrame(jpeg []byte)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }

// Point2D is a landmark in normalized image coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HandView is one tracked hand as the renderers see it.
type HandView struct {
	Label string `json:"label"`
	Index int    `json:"index"`
	// Active lists the landmarks touching the thumb, ascending.
	Active []int     `json:"active"`
	Points []Point2D `json:"points"`
}

// Snapshot is a read-only copy of the game state after a tick.
type Snapshot struct {
	Tick   uint64    `json:"tick"`
	Time   time.Time `json:"time"`
	Mode   Mode      `json:"mode"`
	Width  int       `json:"width"`
	Height int       `json:"height"`

	Stats    challenge.Stats `json:"stats"`
	Accuracy float64         `json:"accuracy"`

	Challenge *challenge.Challenge `json:"challenge,omitempty"`
	// Progress runs from 1 when a challenge starts down to 0 at its limit.
	Progress  float64           `json:"progress"`
	Remaining float64           `json:"remaining_seconds"`
	Result    *challenge.Result `json:"result,omitempty"`

	Hands       []HandView `json:"hands"`
	RecentNotes []string   `json:"recent_notes"`

	bindings *gesture.Bindings
}

func (a *App) snapshot(views []HandView, width, height int) Snapshot {
	stats := a.engine.Stats()
	s := Snapshot{
		Tick:        a.tick,
		Time:        a.clock.Now(),
		Mode:        a.mode,
		Width:       width,
		Height:      height,
		Stats:       stats,
		Accuracy:    stats.Accuracy(),
		Hands:       views,
		RecentNotes: a.touch.RecentNotes(),
		bindings:    a.bindings,
	}
	if s.Hands == nil {
		s.Hands = []HandView{}
	}

	if a.mode != ModeChallenge {
		return s
	}
	if c, ok := a.engine.Current(); ok {
		s.Challenge = &c
		s.Progress, _ = a.engine.Progress()
		left, _ := a.engine.Remaining()
		s.Remaining = left.Seconds()
	}
	if r, ok := a.engine.Result(); ok {
		s.Result = &r
	}
	return s
}

func handView(hand *detector.HandLandmarks, index int, active []int) HandView {
	v := HandView{
		Label:  hand.Handedness,
		Index:  index,
		Active: active,
		Points: make([]Point2D, detector.NumLandmarks),
	}
	if v.Active == nil {
		v.Active = []int{}
	}
	for i, p := range hand.Points {
		v.Points[i] = Point2D{X: p.X, Y: p.Y}
	}
	return v
}
