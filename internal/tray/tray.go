// Package tray provides the system tray menu: current score, mode switch,
// reset, a link to the web UI and quit.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/gestosongs/internal/app"
)

// Controller receives the commands picked from the menu.
type Controller interface {
	ToggleMode()
	ResetStats()
}

// Tray represents the system tray application. It implements app.Renderer
// so the menu follows the game.
type Tray struct {
	ctrl   Controller
	onOpen func()
	onQuit func()
	mu     sync.RWMutex

	// Last rendered labels, so menu items are only touched on change.
	scoreLabel string
	modeLabel  string

	// Menu items stored for later updates
	menuScore *systray.MenuItem
	menuMode  *systray.MenuItem
}

// New creates a Tray that sends menu commands to ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{
		ctrl:       ctrl,
		scoreLabel: scoreLabel(app.Snapshot{}),
		modeLabel:  modeLabel(app.ModeChallenge),
	}
}

// OnOpen sets the callback for the "Open web UI" item. Without one the item
// is hidden.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Render implements app.Renderer.
func (t *Tray) Render(s app.Snapshot) {
	score, mode := scoreLabel(s), modeLabel(s.Mode)

	t.mu.Lock()
	defer t.mu.Unlock()
	if score != t.scoreLabel {
		t.scoreLabel = score
		if t.menuScore != nil {
			t.menuScore.SetTitle(score)
		}
	}
	if mode != t.modeLabel {
		t.modeLabel = mode
		if t.menuMode != nil {
			t.menuMode.SetTitle(mode)
		}
	}
}

// Labels returns the score and mode labels currently shown.
func (t *Tray) Labels() (score, mode string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scoreLabel, t.modeLabel
}

func scoreLabel(s app.Snapshot) string {
	level := max(1, s.Stats.Level)
	return fmt.Sprintf("Score %d · Level %d · Streak %d", s.Stats.Score, level, s.Stats.Streak)
}

func modeLabel(mode app.Mode) string {
	if mode == app.ModeFree {
		return "○ Free play (switch to challenge)"
	}
	return "● Challenge (switch to free play)"
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("gestosongs")
	systray.SetTooltip("gestosongs: play notes with your fingers")

	t.mu.Lock()
	t.menuScore = systray.AddMenuItem(t.scoreLabel, "Current game")
	t.menuScore.Disable()
	systray.AddSeparator()
	t.menuMode = systray.AddMenuItem(t.modeLabel, "Switch between challenge and free play")
	menuMode := t.menuMode
	hasOpen := t.onOpen != nil
	t.mu.Unlock()

	menuReset := systray.AddMenuItem("Reset stats", "Start a fresh game")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open web UI...", "Open the game in the browser")
	if !hasOpen {
		menuOpen.Hide()
	}
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit gestosongs")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuMode.ClickedCh:
				t.ctrl.ToggleMode()
			case <-menuReset.ClickedCh:
				t.ctrl.ResetStats()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.menuScore = nil
	t.menuMode = nil
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
