package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ayusman/gestosongs/internal/audio"
	"github.com/ayusman/gestosongs/internal/config"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

type bindingRow struct {
	gesture.Entry
	Finger string `json:"finger" yaml:"finger"`
}

type bindingsReport struct {
	Bindings  []bindingRow       `json:"bindings" yaml:"bindings"`
	Conflicts []gesture.Conflict `json:"conflicts" yaml:"conflicts"`
	Missing   []string           `json:"missing_sounds" yaml:"missing_sounds"`
}

func newBindingsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Show which gesture plays each note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBindings(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}

func runBindings(w io.Writer, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	report := buildBindingsReport(cfg)

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		return writeYAML(w, report)
	}
	printBindings(w, report)
	return nil
}

func buildBindingsReport(cfg config.Config) bindingsReport {
	gestures := cfg.GestureConfig()
	// Conflicts are reported below, so the table builder stays quiet.
	b := gesture.NewBindings(gestures, slog.New(slog.DiscardHandler))

	var report bindingsReport
	for _, e := range b.Entries() {
		report.Bindings = append(report.Bindings, bindingRow{Entry: e, Finger: detector.FingerName(e.Landmark)})
	}
	report.Conflicts = b.Conflicts()

	refs := append(gestures.Sounds(), cfg.Audio.Success, cfg.Audio.Fail)
	if index, err := audio.IndexSounds(cfg.Audio.SoundDir); err == nil {
		report.Missing = audio.Missing(index, refs)
	} else {
		report.Missing = refs
	}
	return report
}

func printBindings(w io.Writer, r bindingsReport) {
	if len(r.Bindings) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No gestures configured. Add [[gestures]] entries to the config file."))
		return
	}

	t := newTable("Note", "Hand", "Finger", "Sound")
	for _, b := range r.Bindings {
		t.Row(b.Note, string(b.Hand), b.Finger, b.Sound)
	}
	fmt.Fprintln(w, t.Render())

	for _, c := range r.Conflicts {
		fmt.Fprintf(w, "%s %s on %s %s replaces %s %s\n",
			titleStyle.Render("conflict:"), c.Note,
			c.Kept.Hand, detector.FingerName(c.Kept.Landmark),
			c.Dropped.Hand, detector.FingerName(c.Dropped.Landmark))
	}
	for _, m := range r.Missing {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render("missing sound:"), m)
	}
}
