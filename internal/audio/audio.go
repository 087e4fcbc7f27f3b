// Package audio plays note and effect sounds for the game.
package audio

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Sink plays sounds by reference. Play must not block the caller.
type Sink interface {
	// Play queues the sound and reports whether it was accepted.
	Play(sound string) bool
	SetVolume(v float64)
	StopAll()
	Close() error
}

// Nop is a Sink that plays nothing. Used when muted or when no audio device
// is available.
type Nop struct{}

func (Nop) Play(string) bool  { return false }
func (Nop) SetVolume(float64) {}
func (Nop) StopAll()          {}
func (Nop) Close() error      { return nil }

// SoundPattern matches the files IndexSounds looks for.
const SoundPattern = "**/*.{wav,WAV}"

// IndexSounds lists the sound files under dir as slash-separated paths
// relative to dir, sorted.
func IndexSounds(dir string) ([]string, error) {
	return indexFS(os.DirFS(dir))
}

func indexFS(fsys fs.FS) ([]string, error) {
	matches, err := doublestar.Glob(fsys, SoundPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("index sounds: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Missing returns the refs that are not in the index.
func Missing(index, refs []string) []string {
	have := make(map[string]struct{}, len(index))
	for _, s := range index {
		have[s] = struct{}{}
	}
	var out []string
	for _, r := range refs {
		if r == "" {
			continue
		}
		if _, ok := have[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}
