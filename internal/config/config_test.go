package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefault(t *testing.T) {
	isolate(t)
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60, cfg.Camera.FPS)
	assert.Equal(t, 40.0, cfg.Game.TouchThreshold)
	assert.Equal(t, 0.5, cfg.Audio.Volume)
	assert.Equal(t, time.Second, cfg.Game.ResultDisplayDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.Game.NoteDecayDuration())

	gc := cfg.GestureConfig()
	assert.Equal(t, "C4", gc[gesture.Left][detector.IndexTip].Note)
	assert.Equal(t, "C#4", gc[gesture.Right][detector.PinkyTip].Note)

	b := gesture.NewBindings(gc, nil)
	e4, _ := b.Lookup("E4")
	assert.Equal(t, gesture.Right, e4.Hand)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dir := isolate(t)
		cfg, err := Load(filepath.Join(dir, "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, `
[game]
mode = "free"
touch_threshold = 55.5

[audio]
mute = true
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ModeFree, cfg.Game.Mode)
		assert.Equal(t, 55.5, cfg.Game.TouchThreshold)
		assert.True(t, cfg.Audio.Mute)
		assert.Equal(t, 0.5, cfg.Audio.Volume)
		assert.Equal(t, 1280, cfg.Camera.Width)
		assert.Equal(t, DefaultGestures(), cfg.Gestures)
	})

	t.Run("gestures replace the default layout", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, `
[[gestures]]
hand = "Right"
landmark = 8
note = "A4"
sound = "notes/a4.wav"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, []GestureEntry{{Hand: "Right", Landmark: 8, Note: "A4", Sound: "notes/a4.wav"}}, cfg.Gestures)
	})

	t.Run("explicit empty gestures", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, "gestures = []\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Empty(t, cfg.Gestures)
		assert.Zero(t, gesture.NewBindings(cfg.GestureConfig(), nil).Len())
	})

	t.Run("duplicate landmark is rejected", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, `
[[gestures]]
hand = "Left"
landmark = 8
note = "C4"

[[gestures]]
hand = "Left"
landmark = 8
note = "D4"
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalid))
		assert.Contains(t, err.Error(), "configured twice")
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, "[game]\nspeed = 3\n")

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "game.speed")
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, "[game\n")

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative camera", func(c *Config) { c.Camera.Index = -1 }},
		{"zero width", func(c *Config) { c.Camera.Width = 0 }},
		{"fps too high", func(c *Config) { c.Camera.FPS = 500 }},
		{"no hands", func(c *Config) { c.Tracking.MaxHands = 0 }},
		{"confidence above one", func(c *Config) { c.Tracking.MinDetection = 1.2 }},
		{"unknown mode", func(c *Config) { c.Game.Mode = "zen" }},
		{"zero threshold", func(c *Config) { c.Game.TouchThreshold = 0 }},
		{"negative display", func(c *Config) { c.Game.ResultDisplay = -1 }},
		{"loud", func(c *Config) { c.Audio.Volume = 2 }},
		{"stream every zero", func(c *Config) { c.Server.StreamEvery = 0 }},
		{"history without path", func(c *Config) { c.History.Path = "" }},
		{"lowercase hand", func(c *Config) { c.Gestures[0].Hand = "left" }},
		{"thumb tip", func(c *Config) { c.Gestures[0].Landmark = detector.ThumbTip }},
		{"landmark out of range", func(c *Config) { c.Gestures[0].Landmark = 30 }},
		{"empty note", func(c *Config) { c.Gestures[0].Note = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}

	t.Run("history path only needed when enabled", func(t *testing.T) {
		cfg := Default()
		cfg.History = HistoryConfig{Enabled: false}
		assert.NoError(t, cfg.Validate())
	})
}

func TestWriteAndEnsure(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	created, err := EnsureFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	created, err = EnsureFile(path)
	require.NoError(t, err)
	assert.False(t, created, "existing file is left alone")
}

func TestXDGPaths(t *testing.T) {
	dir := isolate(t)

	assert.Equal(t, filepath.Join(dir, "config", "gestosongs", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join(dir, "data", "gestosongs", "gestosongs.db"), DefaultDBPath())
	assert.Equal(t, filepath.Join(dir, "state", "gestosongs", "gestosongs.log"), DefaultLogPath())
}

func TestWatcher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watcher test in short mode")
	}

	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[game]\nmode = \"challenge\"\n")

	w, err := NewWatcher(path, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// An invalid file produces no update.
	writeFile(t, path, "[game]\nmode = \"zen\"\n")
	select {
	case cfg := <-w.Updates():
		t.Fatalf("unexpected update %+v", cfg.Game)
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, path, "[game]\nmode = \"free\"\n")
	select {
	case cfg := <-w.Updates():
		assert.Equal(t, ModeFree, cfg.Game.Mode)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	// Updates closes once Run returns.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-w.Updates():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
