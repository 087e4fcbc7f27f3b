// Package config holds the game settings: the TOML file, its defaults and
// validation, XDG paths and live reloading.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

// Game modes.
const (
	ModeChallenge = "challenge"
	ModeFree      = "free"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of game settings.
type Config struct {
	Camera   CameraConfig   `toml:"camera"`
	Tracking TrackingConfig `toml:"tracking"`
	Game     GameConfig     `toml:"game"`
	Audio    AudioConfig    `toml:"audio"`
	Server   ServerConfig   `toml:"server"`
	History  HistoryConfig  `toml:"history"`
	Gestures []GestureEntry `toml:"gestures"`
}

type CameraConfig struct {
	Index  int  `toml:"index"`
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	FPS    int  `toml:"fps"`
	Mirror bool `toml:"mirror"`
}

type TrackingConfig struct {
	MaxHands     int     `toml:"max_hands"`
	MinDetection float64 `toml:"min_detection"`
	MinTracking  float64 `toml:"min_tracking"`
}

// GameConfig holds the rules the player can tune. Durations are in seconds.
type GameConfig struct {
	Mode           string  `toml:"mode"`
	TouchThreshold float64 `toml:"touch_threshold"`
	ResultDisplay  float64 `toml:"result_display"`
	NoteDecay      float64 `toml:"note_decay"`
}

// AudioConfig locates the sound files. Gesture and effect sounds are
// resolved relative to SoundDir.
type AudioConfig struct {
	Volume   float64 `toml:"volume"`
	Mute     bool    `toml:"mute"`
	SoundDir string  `toml:"sound_dir"`
	Success  string  `toml:"success"`
	Fail     string  `toml:"fail"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// StreamEvery publishes one MJPEG frame every N ticks.
	StreamEvery int `toml:"stream_every"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// GestureEntry binds one landmark of one hand to a note.
type GestureEntry struct {
	Hand     string `toml:"hand"`
	Landmark int    `toml:"landmark"`
	Note     string `toml:"note"`
	Sound    string `toml:"sound"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Index:  0,
			Width:  1280,
			Height: 720,
			FPS:    60,
			Mirror: true,
		},
		Tracking: TrackingConfig{
			MaxHands:     2,
			MinDetection: 0.7,
			MinTracking:  0.7,
		},
		Game: GameConfig{
			Mode:           ModeChallenge,
			TouchThreshold: gesture.DefaultThreshold,
			ResultDisplay:  1.0,
			NoteDecay:      0.5,
		},
		Audio: AudioConfig{
			Volume:   0.5,
			SoundDir: "assets/sounds",
			Success:  "effects/success.wav",
			Fail:     "effects/fail.wav",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8420",
			StreamEvery: 4,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultDBPath(),
		},
		Gestures: DefaultGestures(),
	}
}

// DefaultGestures is the sample piano layout. E4 and F4 appear on both hands.
func DefaultGestures() []GestureEntry {
	return []GestureEntry{
		{Hand: "Left", Landmark: detector.IndexTip, Note: "C4", Sound: "notes/piano_c4.wav"},
		{Hand: "Left", Landmark: detector.MiddleTip, Note: "D4", Sound: "notes/piano_d4.wav"},
		{Hand: "Left", Landmark: detector.RingTip, Note: "E4", Sound: "notes/piano_e4.wav"},
		{Hand: "Left", Landmark: detector.PinkyTip, Note: "F4", Sound: "notes/piano_f4.wav"},
		{Hand: "Right", Landmark: detector.IndexTip, Note: "E4", Sound: "notes/piano_e4.wav"},
		{Hand: "Right", Landmark: detector.MiddleTip, Note: "F4", Sound: "notes/piano_f4.wav"},
		{Hand: "Right", Landmark: detector.RingTip, Note: "G4", Sound: "notes/piano_g4.wav"},
		{Hand: "Right", Landmark: detector.PinkyTip, Note: "C#4", Sound: "notes/piano_cs4.wav"},
	}
}

// Validate reports every problem found, joined, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Camera.Index < 0 {
		bad("camera.index must not be negative")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		bad("camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS < 1 || c.Camera.FPS > 240 {
		bad("camera.fps %d out of range 1-240", c.Camera.FPS)
	}
	if c.Tracking.MaxHands < 1 || c.Tracking.MaxHands > 4 {
		bad("tracking.max_hands %d out of range 1-4", c.Tracking.MaxHands)
	}
	if !unit(c.Tracking.MinDetection) || !unit(c.Tracking.MinTracking) {
		bad("tracking confidences must be within 0-1")
	}
	if c.Game.Mode != ModeChallenge && c.Game.Mode != ModeFree {
		bad("game.mode %q", c.Game.Mode)
	}
	if c.Game.TouchThreshold <= 0 {
		bad("game.touch_threshold must be positive")
	}
	if c.Game.ResultDisplay < 0 || c.Game.NoteDecay < 0 {
		bad("game durations must not be negative")
	}
	if !unit(c.Audio.Volume) {
		bad("audio.volume %.2f out of range 0-1", c.Audio.Volume)
	}
	if c.Server.StreamEvery < 1 {
		bad("server.stream_every must be at least 1")
	}
	if c.History.Enabled && c.History.Path == "" {
		bad("history.path is empty")
	}

	type key struct {
		hand     gesture.Hand
		landmark int
	}
	seen := make(map[key]bool, len(c.Gestures))
	for i, g := range c.Gestures {
		hand, ok := gesture.ParseHand(g.Hand)
		if !ok {
			bad("gestures[%d]: hand %q must be Left or Right", i, g.Hand)
			continue
		}
		if !detector.ValidLandmark(g.Landmark) || g.Landmark == detector.ThumbTip {
			bad("gestures[%d]: landmark %d", i, g.Landmark)
		}
		if g.Note == "" {
			bad("gestures[%d]: note is empty", i)
		}
		k := key{hand, g.Landmark}
		if seen[k] {
			bad("gestures[%d]: %s landmark %d configured twice", i, hand, g.Landmark)
		}
		seen[k] = true
	}

	return errors.Join(errs...)
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// GestureConfig converts the gesture entries into per-hand mappings.
// Entries with unknown hands are skipped; call Validate first.
func (c Config) GestureConfig() gesture.Config {
	out := make(gesture.Config)
	for _, g := range c.Gestures {
		hand, ok := gesture.ParseHand(g.Hand)
		if !ok {
			continue
		}
		if out[hand] == nil {
			out[hand] = make(gesture.HandGestures)
		}
		out[hand][g.Landmark] = gesture.Mapping{Sound: g.Sound, Note: g.Note}
	}
	return out
}

// ResultDisplayDuration returns how long a challenge result stays visible.
func (g GameConfig) ResultDisplayDuration() time.Duration {
	return seconds(g.ResultDisplay)
}

// NoteDecayDuration returns how long a played note stays highlighted.
func (g GameConfig) NoteDecayDuration() time.Duration {
	return seconds(g.NoteDecay)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
