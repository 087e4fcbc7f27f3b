package challenge

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ayusman/gestosongs/internal/clock"
	"github.com/ayusman/gestosongs/internal/gesture"
)

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Bindings *gesture.Bindings
	Clock    clock.Clock
	Rand     *rand.Rand
	Logger   *slog.Logger
}

// Engine owns the game statistics and at most one active challenge.
// It is driven by polling once per tick and is not safe for concurrent use.
type Engine struct {
	bindings *gesture.Bindings
	clock    clock.Clock
	rand     *rand.Rand
	logger   *slog.Logger

	stats   Stats
	current *Challenge
	result  *Result

	// lastEnded anchors the cooldown between challenges. Zero means no
	// challenge has ended since the last reset.
	lastEnded   time.Time
	warnedEmpty bool
}

// NewEngine creates an engine with fresh stats.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		bindings: cfg.Bindings,
		clock:    cfg.Clock,
		rand:     cfg.Rand,
		logger:   cfg.Logger,
		stats:    NewStats(),
	}
}

// SetBindings replaces the note table. An active challenge keeps running.
func (e *Engine) SetBindings(b *gesture.Bindings) {
	e.bindings = b
	e.warnedEmpty = false
}

// Generate starts a challenge for a random bound note. It does nothing when
// a challenge is already active or no notes are bound.
func (e *Engine) Generate() (Challenge, bool) {
	if e.current != nil {
		return Challenge{}, false
	}

	notes := e.bindings.Notes()
	if len(notes) == 0 {
		if !e.warnedEmpty {
			e.logger.Warn("no notes available for challenge generation")
			e.warnedEmpty = true
		}
		return Challenge{}, false
	}

	note := notes[e.rand.IntN(len(notes))]
	binding, _ := e.bindings.Lookup(note)

	c := Challenge{
		Note:      note,
		FingerID:  binding.Landmark,
		Hand:      binding.Hand,
		StartTime: e.clock.Now(),
		TimeLimit: TimeLimit(e.stats.Level),
	}
	e.current = &c
	e.stats.TotalChallenges++

	e.logger.Info("new challenge",
		"note", c.Note, "hand", c.Hand, "finger", c.FingerID, "time_limit", c.TimeLimit)
	return c, true
}

// CheckCompletion scores the active challenge if note and hand both match
// it. Any mismatch returns false and changes nothing.
func (e *Engine) CheckCompletion(note string, hand gesture.Hand) bool {
	c := e.current
	if c == nil || note != c.Note || hand != c.Hand {
		return false
	}

	now := e.clock.Now()
	elapsed := now.Sub(c.StartTime)

	bonus := 0
	if left := c.TimeLimit - elapsed; left > 0 {
		bonus = int(left / bonusInterval)
	}
	points := BasePoints + bonus

	e.stats.Score += points
	e.stats.CorrectHits++
	e.stats.Streak++
	e.stats.MaxStreak = max(e.stats.MaxStreak, e.stats.Streak)

	r := Result{
		Kind:      KindPoints,
		Text:      pointsText(points),
		Points:    points,
		Timestamp: now,
		Challenge: *c,
		Elapsed:   elapsed,
	}
	if elapsed < PerfectWindow {
		e.stats.PerfectHits++
		r.Kind, r.Text, r.Perfect = KindPerfect, textPerfect, true
	}
	if e.stats.CorrectHits%LevelEvery == 0 {
		e.stats.Level++
		r.Kind, r.Text = KindLevelUp, levelUpText(e.stats.Level)
	}
	r.Level = e.stats.Level

	e.result = &r
	e.current = nil
	e.lastEnded = now

	e.logger.Debug("challenge completed",
		"note", note, "hand", hand, "elapsed", elapsed, "points", points, "result", r.Text)
	return true
}

// CheckTimeout ends the active challenge as missed once its time limit has
// passed. The streak resets; score, hits and level are kept.
func (e *Engine) CheckTimeout() bool {
	c := e.current
	if c == nil {
		return false
	}

	now := e.clock.Now()
	elapsed := now.Sub(c.StartTime)
	if elapsed <= c.TimeLimit {
		return false
	}

	e.stats.Streak = 0
	e.result = &Result{
		Kind:      KindMissed,
		Text:      textMissed,
		Timestamp: now,
		Challenge: *c,
		Elapsed:   elapsed,
		Level:     e.stats.Level,
	}
	e.current = nil
	e.lastEnded = now

	e.logger.Debug("challenge missed", "note", c.Note, "hand", c.Hand)
	return true
}

// ShouldGenerate reports whether no challenge is active and the cooldown
// since the last one ended has passed.
func (e *Engine) ShouldGenerate() bool {
	if e.current != nil {
		return false
	}
	if e.lastEnded.IsZero() {
		return true
	}
	return e.clock.Now().Sub(e.lastEnded) > Cooldown
}

// Progress returns the fraction of time left on the active challenge, from 1
// at its start down to 0 once the limit is reached.
func (e *Engine) Progress() (float64, bool) {
	c := e.current
	if c == nil {
		return 0, false
	}
	if c.TimeLimit <= 0 {
		return 0, true
	}
	elapsed := e.clock.Now().Sub(c.StartTime)
	p := 1 - elapsed.Seconds()/c.TimeLimit.Seconds()
	return min(1, max(0, p)), true
}

// Remaining returns the time left on the active challenge, never negative.
func (e *Engine) Remaining() (time.Duration, bool) {
	c := e.current
	if c == nil {
		return 0, false
	}
	elapsed := e.clock.Now().Sub(c.StartTime)
	return max(0, c.TimeLimit-elapsed), true
}

// ClearResult drops the current result once it is older than
// displayDuration. It reports whether a result was cleared.
func (e *Engine) ClearResult(displayDuration time.Duration) bool {
	if e.result == nil {
		return false
	}
	if e.clock.Now().Sub(e.result.Timestamp) <= displayDuration {
		return false
	}
	e.result = nil
	return true
}

// Abandon drops the active challenge without scoring it. The challenge
// still counts towards TotalChallenges.
func (e *Engine) Abandon() bool {
	if e.current == nil {
		return false
	}
	e.logger.Debug("challenge abandoned", "note", e.current.Note)
	e.current = nil
	return true
}

// ResetStats starts a fresh game. The next ShouldGenerate call passes.
func (e *Engine) ResetStats() {
	e.stats = NewStats()
	e.current = nil
	e.result = nil
	e.lastEnded = time.Time{}
	e.logger.Info("game stats reset")
}

// Stats returns a copy of the current statistics.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Current returns the active challenge.
func (e *Engine) Current() (Challenge, bool) {
	if e.current == nil {
		return Challenge{}, false
	}
	return *e.current, true
}

// Result returns the result waiting to be displayed.
func (e *Engine) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}
