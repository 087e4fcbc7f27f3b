package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/gestosongs/internal/store"
)

// Output formats for listing commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type statsReport struct {
	Best     *store.Session   `json:"best,omitempty" yaml:"best,omitempty"`
	Sessions []*store.Session `json:"sessions" yaml:"sessions"`
	Notes    []store.NoteStat `json:"notes" yaml:"notes"`
}

func newStatsCmd() *cobra.Command {
	var (
		last   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded sessions and per-note hit rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.OutOrStdout(), last, format)
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 10, "number of recent sessions")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}

func runStats(w io.Writer, last int, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	report, err := loadReport(st, last)
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		return writeYAML(w, report)
	}
	printReport(w, report)
	return nil
}

func loadReport(st *store.Store, last int) (statsReport, error) {
	sessions, err := st.Sessions().List(last)
	if err != nil {
		return statsReport{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	notes, err := st.Attempts().NoteStats()
	if err != nil {
		return statsReport{}, fmt.Errorf("failed to load note stats: %w", err)
	}
	best, err := st.Sessions().Best()
	if errors.Is(err, store.ErrNotFound) {
		best, err = nil, nil
	}
	if err != nil {
		return statsReport{}, fmt.Errorf("failed to load best session: %w", err)
	}
	return statsReport{Best: best, Sessions: sessions, Notes: notes}, nil
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F25D94"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C0C0C0")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printReport(w io.Writer, r statsReport) {
	if len(r.Sessions) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No sessions recorded yet. Run gestosongs to play."))
		return
	}

	if r.Best != nil {
		fmt.Fprintf(w, "%s %d points, level %d, %.1f%% accuracy (%s)\n\n",
			titleStyle.Render("Best:"), r.Best.Score, r.Best.Level, r.Best.Accuracy(),
			r.Best.StartedAt.Local().Format("2006-01-02 15:04"))
	}

	sessions := newTable("Started", "Mode", "Score", "Level", "Hits", "Accuracy", "Streak", "Perfect", "Length")
	for _, s := range r.Sessions {
		length := "open"
		if s.EndedAt != nil {
			length = s.Duration().Round(time.Second).String()
		}
		sessions.Row(
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Mode,
			fmt.Sprintf("%d", s.Score),
			fmt.Sprintf("%d", s.Level),
			fmt.Sprintf("%d/%d", s.CorrectHits, s.TotalChallenges),
			fmt.Sprintf("%.1f%%", s.Accuracy()),
			fmt.Sprintf("%d", s.MaxStreak),
			fmt.Sprintf("%d", s.PerfectHits),
			length,
		)
	}
	fmt.Fprintln(w, titleStyle.Render("Sessions"))
	fmt.Fprintln(w, sessions.Render())

	if len(r.Notes) == 0 {
		return
	}
	notes := newTable("Note", "Hand", "Attempts", "Hit rate", "Avg hit")
	for _, n := range r.Notes {
		avg := "-"
		if n.Hits > 0 {
			avg = fmt.Sprintf("%.0fms", n.AvgHitMs)
		}
		notes.Row(
			n.Note,
			n.Hand,
			fmt.Sprintf("%d", n.Attempts),
			fmt.Sprintf("%.1f%%", n.HitRate()),
			avg,
		)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Notes"))
	fmt.Fprintln(w, notes.Render())
}
