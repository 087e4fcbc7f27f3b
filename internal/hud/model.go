// Package hud provides the Bubble Tea heads-up display: running stats, the
// active challenge with its countdown, the last result and the key help.
package hud

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/gestosongs/internal/app"
	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/detector"
)

// Controller receives the commands bound to keys.
type Controller interface {
	ToggleMode()
	ResetStats()
}

// SnapshotMsg carries a game snapshot into the Bubble Tea program.
type SnapshotMsg app.Snapshot

const (
	minBarWidth = 10
	maxBarWidth = 48
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	modeStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	hitStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	perfectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD666")).Bold(true)
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea HUD.
type Model struct {
	ctrl Controller
	snap app.Snapshot
	seen bool
	bar  progress.Model

	width  int
	height int
}

// NewModel creates a HUD that sends key commands to ctrl.
func NewModel(ctrl Controller) *Model {
	return &Model{
		ctrl: ctrl,
		bar: progress.New(
			progress.WithGradient("#FF4D4F", "#52C41A"),
			progress.WithoutPercentage(),
			progress.WithWidth(maxBarWidth),
		),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(maxBarWidth, max(minBarWidth, msg.Width-8))
		return m, nil
	case SnapshotMsg:
		m.snap = app.Snapshot(msg)
		m.seen = true
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "m":
			m.ctrl.ToggleMode()
		case "r":
			m.ctrl.ResetStats()
		}
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.seen {
		return titleStyle.Render("gestosongs") + "\n\n" + mutedStyle.Render("waiting for the camera...") + "\n"
	}

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Center,
			titleStyle.Render("gestosongs"), " ", modeStyle.Render(modeLabel(m.snap.Mode))),
		m.renderStats(),
	}
	if m.snap.Mode == app.ModeChallenge {
		sections = append(sections, m.renderChallenge())
	}
	sections = append(sections, m.renderHands(), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func modeLabel(mode app.Mode) string {
	if mode == app.ModeFree {
		return "FREE PLAY"
	}
	return "CHALLENGE"
}

func stat(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

func (m *Model) renderStats() string {
	s := m.snap.Stats
	row := []string{
		stat("Score", fmt.Sprintf("%d", s.Score)),
		stat("Level", fmt.Sprintf("%d", s.Level)),
		stat("Streak", fmt.Sprintf("%d", s.Streak)),
		stat("Best", fmt.Sprintf("%d", s.MaxStreak)),
		stat("Accuracy", fmt.Sprintf("%.1f%%", m.snap.Accuracy)),
		stat("Perfect", fmt.Sprintf("%d", s.PerfectHits)),
	}
	return cardStyle.Render(strings.Join(row, "   "))
}

func (m *Model) renderChallenge() string {
	var lines []string
	if c := m.snap.Challenge; c != nil {
		lines = append(lines,
			labelStyle.Render("Play ")+noteStyle.Render(c.Note)+
				labelStyle.Render(fmt.Sprintf("  %s hand, %s", c.Hand, detector.FingerName(c.FingerID))),
			m.bar.ViewAs(m.snap.Progress)+" "+valueStyle.Render(fmt.Sprintf("%.1fs", m.snap.Remaining)),
		)
	} else {
		lines = append(lines, mutedStyle.Render("get ready..."))
	}
	if r := m.snap.Result; r != nil {
		lines = append(lines, resultStyle(r.Kind).Render(r.Text))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func resultStyle(kind challenge.ResultKind) lipgloss.Style {
	switch kind {
	case challenge.KindPerfect, challenge.KindLevelUp:
		return perfectStyle
	case challenge.KindMissed:
		return missStyle
	default:
		return hitStyle
	}
}

func (m *Model) renderHands() string {
	hands := mutedStyle.Render("no hands")
	if n := len(m.snap.Hands); n > 0 {
		labels := make([]string, 0, n)
		for _, h := range m.snap.Hands {
			label := h.Label
			if label == "" {
				label = "?"
			}
			labels = append(labels, label)
		}
		hands = valueStyle.Render(strings.Join(labels, " + "))
	}

	notes := mutedStyle.Render("-")
	if len(m.snap.RecentNotes) > 0 {
		notes = noteStyle.Render(strings.Join(m.snap.RecentNotes, " "))
	}
	return labelStyle.Render("Hands ") + hands + labelStyle.Render("   Notes ") + notes
}

func (m *Model) renderFooter() string {
	return footerStyle.Render("m switch mode · r reset · q quit")
}
