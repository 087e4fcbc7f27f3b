package hud

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/gestosongs/internal/app"
)

// Renderer forwards game snapshots to a Bubble Tea program without ever
// blocking the game loop. Snapshots arriving faster than the program takes
// them replace each other.
type Renderer struct {
	send   func(tea.Msg)
	latest chan app.Snapshot
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRenderer starts forwarding to send, usually (*tea.Program).Send.
func NewRenderer(send func(tea.Msg)) *Renderer {
	r := &Renderer{
		send:   send,
		latest: make(chan app.Snapshot, 1),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Render implements app.Renderer.
func (r *Renderer) Render(s app.Snapshot) {
	select {
	case r.latest <- s:
		return
	default:
	}
	select {
	case <-r.latest:
	default:
	}
	select {
	case r.latest <- s:
	default:
	}
}

// Close stops forwarding.
func (r *Renderer) Close() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Renderer) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case s := <-r.latest:
			r.send(SnapshotMsg(s))
		}
	}
}
