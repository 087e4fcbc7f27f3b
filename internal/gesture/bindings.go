package gesture

import (
	"log/slog"
)

// Binding is the gesture that produces a note.
type Binding struct {
	Hand     Hand   `json:"hand" yaml:"hand"`
	Landmark int    `json:"landmark" yaml:"landmark"`
	Sound    string `json:"sound,omitempty" yaml:"sound,omitempty"`
}

// Entry is one row of the binding table.
type Entry struct {
	Note string `json:"note" yaml:"note"`
	Binding
}

// Conflict records a note configured on more than one gesture. Kept is the
// binding the table resolved to; Dropped is the one it overwrote.
type Conflict struct {
	Note    string  `json:"note" yaml:"note"`
	Kept    Binding `json:"kept" yaml:"kept"`
	Dropped Binding `json:"dropped" yaml:"dropped"`
}

// Bindings maps note names to gestures. It is immutable once built.
type Bindings struct {
	byNote    map[string]Binding
	notes     []string
	conflicts []Conflict
}

// NewBindings builds the table from cfg, walking hands in HandOrder and
// landmarks ascending. When two gestures produce the same note the later one
// wins; each overwrite is recorded as a Conflict and logged.
func NewBindings(cfg Config, logger *slog.Logger) *Bindings {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bindings{byNote: make(map[string]Binding)}
	for _, hand := range HandOrder {
		gestures := cfg[hand]
		for _, id := range gestures.Landmarks() {
			m := gestures[id]
			if m.Note == "" {
				continue
			}
			next := Binding{Hand: hand, Landmark: id, Sound: m.Sound}
			if prev, ok := b.byNote[m.Note]; ok {
				b.conflicts = append(b.conflicts, Conflict{Note: m.Note, Kept: next, Dropped: prev})
				logger.Warn("note bound to more than one gesture, keeping the later one",
					"note", m.Note,
					"kept_hand", next.Hand, "kept_landmark", next.Landmark,
					"dropped_hand", prev.Hand, "dropped_landmark", prev.Landmark)
			} else {
				b.notes = append(b.notes, m.Note)
			}
			b.byNote[m.Note] = next
		}
	}
	return b
}

// Lookup returns the gesture bound to note.
func (b *Bindings) Lookup(note string) (Binding, bool) {
	if b == nil {
		return Binding{}, false
	}
	binding, ok := b.byNote[note]
	return binding, ok
}

// Notes returns the bound notes in first-insertion order.
func (b *Bindings) Notes() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.notes...)
}

// Len returns the number of bound notes.
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.notes)
}

// Entries returns the table rows in note order.
func (b *Bindings) Entries() []Entry {
	if b == nil {
		return nil
	}
	out := make([]Entry, 0, len(b.notes))
	for _, note := range b.notes {
		out = append(out, Entry{Note: note, Binding: b.byNote[note]})
	}
	return out
}

// Conflicts returns every overwrite that happened while building the table.
func (b *Bindings) Conflicts() []Conflict {
	if b == nil {
		return nil
	}
	return append([]Conflict(nil), b.conflicts...)
}
