package app

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestosongs/internal/capture"
	"github.com/ayusman/gestosongs/internal/detector"
)

// degradeLogEvery limits how often a failing collaborator is logged.
const degradeLogEvery = 5 * time.Second

type degradation struct {
	lastLogged time.Time
	suppressed int
}

// Run opens the camera and ticks at the configured frame rate until ctx is
// cancelled. A frame that cannot be read or tracked still produces a tick,
// with no hands, so timeouts and renderers keep running. Without a camera
// every tick has no hands.
//
// Call Close after Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.camera != nil {
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		a.camera.SetFPS(a.fps)
		defer func() {
			if err := a.camera.Close(); err != nil {
				a.logger.Warn("close camera", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(a.fps))
	defer ticker.Stop()

	a.logger.Info("game loop started", "fps", a.fps, "mode", a.mode)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("game loop stopped", "ticks", a.tick)
			return nil
		case <-ticker.C:
			hands, width, height := a.capture()
			a.Step(hands, width, height)
		}
	}
}

// capture reads one frame, feeds the frame sinks and runs hand tracking.
func (a *App) capture() ([]detector.HandLandmarks, int, int) {
	if a.camera == nil {
		return nil, 0, 0
	}
	width, height := a.camera.Size()

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.degraded("camera", err)
		return nil, width, height
	}
	defer frame.Close()
	a.recovered("camera")
	width, height = frame.Cols(), frame.Rows()

	// a.tick is incremented by the Step that follows.
	if (a.tick+1)%uint64(a.streamEvery) == 0 {
		a.publishFrame(frame)
	}

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.degraded("tracker", err)
		return nil, width, height
	}
	a.recovered("tracker")
	return hands, width, height
}

// watcher is implemented by frame sinks that know whether anyone is looking.
type watcher interface {
	Watching() bool
}

func (a *App) publishFrame(frame *gocv.Mat) {
	a.outputMu.RLock()
	var sinks []FrameSink
	for _, s := range a.sinks {
		if w, ok := s.(watcher); ok && !w.Watching() {
			continue
		}
		sinks = append(sinks, s)
	}
	a.outputMu.RUnlock()
	if len(sinks) == 0 {
		return
	}

	data, err := capture.EncodeJPEG(frame)
	if err != nil {
		a.degraded("encoder", err)
		return
	}
	for _, s := range sinks {
		s.PublishFrame(data)
	}
}

// degraded logs a collaborator failure at most once per degradeLogEvery.
func (a *App) degraded(source string, err error) {
	a.metrics.degrade(source)

	d := a.warned[source]
	if d == nil {
		d = &degradation{}
		a.warned[source] = d
	}
	now := a.clock.Now()
	if !d.lastLogged.IsZero() && now.Sub(d.lastLogged) < degradeLogEvery {
		d.suppressed++
		return
	}
	a.logger.Warn("running tick without hands", "source", source, "error", err, "suppressed", d.suppressed)
	d.lastLogged = now
	d.suppressed = 0
}

func (a *App) recovered(source string) {
	if _, ok := a.warned[source]; !ok {
		return
	}
	delete(a.warned, source)
	a.logger.Info("collaborator recovered", "source", source)
}
