// Package app runs the game: it owns the touch detector and the challenge
// engine, advances them one tick at a time and publishes what happened to
// renderers, the sound sink, metrics and the session history.
package app

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/gestosongs/internal/audio"
	"github.com/ayusman/gestosongs/internal/capture"
	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/clock"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
	"github.com/ayusman/gestosongs/internal/store"
)

// Mode selects whether touches are scored.
type Mode string

const (
	ModeChallenge Mode = "challenge"
	ModeFree      Mode = "free"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChallenge, ModeFree:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Defaults applied by New for zero Config fields.
const (
	DefaultFPS         = 60
	DefaultStreamEvery = 4
	DefaultNoteDecay   = 500 * time.Millisecond
)

// Settings are the parts of the configuration that can change while the
// game runs.
type Settings struct {
	Gestures       gesture.Config
	TouchThreshold float64
	ResultDisplay  time.Duration
	NoteDecay      time.Duration
	Volume         float64
	SuccessSound   string
	FailSound      string
}

func (s Settings) withDefaults() Settings {
	if s.ResultDisplay <= 0 {
		s.ResultDisplay = challenge.DefaultResultDisplay
	}
	if s.NoteDecay <= 0 {
		s.NoteDecay = DefaultNoteDecay
	}
	return s
}

// Config holds the collaborators and options of an App. Only Settings.Gestures
// is required; every nil collaborator gets a harmless default.
type Config struct {
	Settings

	Mode        Mode
	FPS         int
	StreamEvery int

	Camera   capture.Camera
	Detector detector.Detector
	Audio    audio.Sink
	Store    *store.Store
	Metrics  *Metrics

	Clock  clock.Clock
	Rand   *rand.Rand
	Logger *slog.Logger
}

// App is the game loop. Step and Run must be called from a single goroutine;
// every other method is safe for concurrent use.
type App struct {
	clock  clock.Clock
	logger *slog.Logger

	camera   capture.Camera
	detector detector.Detector
	audio    audio.Sink
	metrics  *Metrics
	recorder *recorder

	fps         int
	streamEvery int

	// Owned by the tick goroutine.
	settings Settings
	mode     Mode
	touch    *gesture.TouchDetector
	engine   *challenge.Engine
	bindings *gesture.Bindings
	tick     uint64
	warned   map[string]*degradation

	mu       sync.Mutex
	pending  []command
	closed   bool
	latest   atomic.Pointer[Snapshot]
	outputMu sync.RWMutex
	outputs  []Renderer
	sinks    []FrameSink
}

type command func(a *App)

// New creates an App. When a store is attached a history session is opened
// right away.
func New(cfg Config) *App {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audio == nil {
		cfg.Audio = audio.Nop{}
	}
	if cfg.Detector == nil {
		cfg.Detector = detector.NewMockDetector()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeChallenge
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.StreamEvery <= 0 {
		cfg.StreamEvery = DefaultStreamEvery
	}
	cfg.Settings = cfg.Settings.withDefaults()

	bindings := gesture.NewBindings(cfg.Gestures, cfg.Logger)
	a := &App{
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		camera:      cfg.Camera,
		detector:    cfg.Detector,
		audio:       cfg.Audio,
		metrics:     cfg.Metrics,
		fps:         cfg.FPS,
		streamEvery: cfg.StreamEvery,
		settings:    cfg.Settings,
		mode:        cfg.Mode,
		touch:       gesture.NewTouchDetector(cfg.TouchThreshold, cfg.Clock),
		bindings:    bindings,
		engine: challenge.NewEngine(challenge.EngineConfig{
			Bindings: bindings,
			Clock:    cfg.Clock,
			Rand:     cfg.Rand,
			Logger:   cfg.Logger,
		}),
		warned: make(map[string]*degradation),
	}
	a.settings.Gestures = cfg.Gestures.Clone()

	if cfg.Store != nil {
		a.recorder = newRecorder(cfg.Store, cfg.Logger)
		a.recorder.begin(a.mode, a.clock.Now())
	}

	initial := a.snapshot(nil, 0, 0)
	a.latest.Store(&initial)
	return a
}

// SetMode switches between challenge and free play on the next tick.
func (a *App) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	a.enqueue(func(a *App) { a.switchMode(m) })
	return nil
}

// ToggleMode flips the mode on the next tick.
func (a *App) ToggleMode() {
	a.enqueue(func(a *App) {
		if a.mode == ModeChallenge {
			a.switchMode(ModeFree)
		} else {
			a.switchMode(ModeChallenge)
		}
	})
}

// ResetStats starts a fresh game on the next tick.
func (a *App) ResetStats() {
	a.enqueue(func(a *App) {
		a.engine.ResetStats()
		if a.recorder != nil {
			now := a.clock.Now()
			a.recorder.end(now)
			a.recorder.begin(a.mode, now)
		}
	})
}

// Reload applies new settings on the next tick. An active challenge keeps
// running even if its note is no longer bound.
func (a *App) Reload(s Settings) {
	s = s.withDefaults()
	s.Gestures = s.Gestures.Clone()
	a.enqueue(func(a *App) { a.applySettings(s) })
}

// Bindings returns the note table currently in effect.
func (a *App) Bindings() *gesture.Bindings {
	return a.Snapshot().bindings
}

// Snapshot returns the state published by the most recent tick.
func (a *App) Snapshot() Snapshot {
	return *a.latest.Load()
}

// AddRenderer registers r to receive every snapshot. Render is called on the
// tick goroutine and must not block.
func (a *App) AddRenderer(r Renderer) {
	a.outputMu.Lock()
	defer a.outputMu.Unlock()
	a.outputs = append(a.outputs, r)
}

// AddFrameSink registers s to receive JPEG camera frames every few ticks.
func (a *App) AddFrameSink(s FrameSink) {
	a.outputMu.Lock()
	defer a.outputMu.Unlock()
	a.sinks = append(a.sinks, s)
}

// Close ends the history session and releases the detector. The camera is
// released by Run.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.recorder != nil {
		a.recorder.end(a.clock.Now())
		a.recorder.close()
	}
	if err := a.detector.Close(); err != nil {
		return fmt.Errorf("close detector: %w", err)
	}
	return nil
}

func (a *App) enqueue(c command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, c)
}

func (a *App) applyCommands() {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, c := range pending {
		c(a)
	}
}

func (a *App) switchMode(m Mode) {
	if m == a.mode {
		return
	}
	a.engine.Abandon()
	a.touch.Reset()
	a.mode = m
	if a.recorder != nil {
		a.recorder.setMode(m)
	}
	a.logger.Info("mode changed", "mode", m)
}

func (a *App) applySettings(s Settings) {
	a.settings = s
	a.touch.SetThreshold(s.TouchThreshold)
	a.bindings = gesture.NewBindings(s.Gestures, a.logger)
	a.engine.SetBindings(a.bindings)
	a.audio.SetVolume(s.Volume)
	a.logger.Info("settings reloaded", "notes", a.bindings.Len(), "threshold", a.touch.Threshold())
}
