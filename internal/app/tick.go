package app

import (
	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

// Step runs exactly one tick over the hands found in a width x height frame
// and returns the published snapshot.
//
// The order is fixed: queued commands, touch detection for every hand, then
// each new touch is played and (in challenge mode) scored, stale note
// highlights are dropped, the timeout is checked, a new challenge may be
// generated, and finally the snapshot is published before an expired result
// is cleared. A touch landing on the tick a challenge expires therefore
// still counts.
func (a *App) Step(hands []detector.HandLandmarks, width, height int) Snapshot {
	start := a.clock.Now()
	a.applyCommands()
	a.tick++

	views, events := a.detect(hands, width, height)

	challengeMode := a.mode == ModeChallenge
	for _, ev := range events {
		if ev.Mapping.Sound != "" {
			a.audio.Play(ev.Mapping.Sound)
		}
		a.metrics.gesture(ev)
		a.logger.Debug("gesture", "hand", ev.Hand, "landmark", ev.Landmark, "note", ev.Note)

		if challengeMode && a.engine.CheckCompletion(ev.Note, ev.Hand) {
			a.finish()
		}
	}

	a.touch.ClearOldNotes(a.settings.NoteDecay)

	if challengeMode {
		if a.engine.CheckTimeout() {
			a.finish()
		}
		if a.engine.ShouldGenerate() {
			if c, ok := a.engine.Generate(); ok {
				a.metrics.challengeStarted(c)
			}
		}
	}

	snap := a.snapshot(views, width, height)
	a.latest.Store(&snap)
	a.render(snap)

	if challengeMode {
		a.engine.ClearResult(a.settings.ResultDisplay)
	}

	a.metrics.tickDone(len(hands), a.clock.Now().Sub(start))
	return snap
}

// detect runs the touch detector over every hand whose handedness has
// gestures configured. Other hands are still shown, with nothing active.
func (a *App) detect(hands []detector.HandLandmarks, width, height int) ([]HandView, []gesture.Event) {
	if len(hands) == 0 {
		return nil, nil
	}

	views := make([]HandView, 0, len(hands))
	var events []gesture.Event
	for i := range hands {
		hand := &hands[i]

		var active []int
		if h, ok := gesture.ParseHand(hand.Handedness); ok {
			if g := a.settings.Gestures[h]; len(g) > 0 {
				det := a.touch.Detect(hand, i, g, width, height)
				active = det.Active
				events = append(events, det.Started...)
			}
		}
		views = append(views, handView(hand, i, active))
	}
	return views, events
}

// finish handles the result the engine just produced.
func (a *App) finish() {
	r, ok := a.engine.Result()
	if !ok {
		return
	}

	effect := a.settings.FailSound
	if r.Hit() {
		effect = a.settings.SuccessSound
	}
	if effect != "" {
		a.audio.Play(effect)
	}

	stats := a.engine.Stats()
	a.metrics.challengeFinished(r, stats)
	if a.recorder != nil {
		a.recorder.attempt(r, stats, a.mode)
	}
	if r.Kind == challenge.KindLevelUp {
		a.logger.Info("level up", "level", stats.Level, "score", stats.Score)
	}
}

func (a *App) render(s Snapshot) {
	a.outputMu.RLock()
	defer a.outputMu.RUnlock()
	for _, r := range a.outputs {
		r.Render(s)
	}
}
