package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// SampleRate of the output device. Sounds are resampled on load.
const SampleRate = 44100

// queueSize bounds the pending plays. When full, new plays are dropped.
const queueSize = 32

// ErrClosed is returned when loading into a closed bank.
var ErrClosed = errors.New("audio bank closed")

// voice is one playing sound.
type voice interface {
	IsPlaying() bool
	Pause()
	Close() error
}

// output starts voices from decoded PCM.
type output interface {
	start(pcm []byte, volume float64) (voice, error)
}

type ebitenOutput struct {
	ctx *audio.Context
}

func (o ebitenOutput) start(pcm []byte, volume float64) (voice, error) {
	if err := o.ctx.Err(); err != nil {
		return nil, err
	}
	p := o.ctx.NewPlayerFromBytes(pcm)
	p.SetVolume(volume)
	p.Play()
	return p, nil
}

// BankOptions configures a Bank.
type BankOptions struct {
	// Dir is the directory sound references are relative to.
	Dir    string
	Volume float64
	Logger *slog.Logger
}

// Bank is a Sink that keeps decoded sounds in memory and plays them from a
// background goroutine, so Play never waits on the device.
type Bank struct {
	dir    string
	out    output
	logger *slog.Logger

	mu     sync.Mutex
	sounds map[string][]byte
	volume float64
	voices []voice
	closed bool

	reqs chan string
	done chan struct{}
}

// NewBank creates a Bank on the shared ebiten audio context.
func NewBank(opts BankOptions) (*Bank, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(SampleRate)
	}
	if ctx.SampleRate() != SampleRate {
		return nil, fmt.Errorf("audio context runs at %d Hz, want %d", ctx.SampleRate(), SampleRate)
	}
	return newBank(opts, ebitenOutput{ctx: ctx}), nil
}

func newBank(opts BankOptions, out output) *Bank {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Bank{
		dir:    opts.Dir,
		out:    out,
		logger: opts.Logger,
		sounds: make(map[string][]byte),
		volume: clampVolume(opts.Volume),
		reqs:   make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	go b.loop()
	return b
}

// LoadAll loads every ref, logging the ones that fail. It returns how many
// sounds are available afterwards.
func (b *Bank) LoadAll(refs []string) int {
	for _, ref := range refs {
		if err := b.Load(ref); err != nil {
			b.logger.Warn("failed to load sound", "sound", ref, "error", err)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sounds)
}

// Load decodes the WAV file ref, relative to the bank directory.
func (b *Bank) Load(ref string) error {
	b.mu.Lock()
	_, loaded := b.sounds[ref]
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if loaded {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(b.dir, filepath.FromSlash(ref)))
	if err != nil {
		return fmt.Errorf("read sound: %w", err)
	}
	pcm, err := decodeWAV(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}

	b.mu.Lock()
	b.sounds[ref] = pcm
	b.mu.Unlock()
	b.logger.Debug("loaded sound", "sound", ref, "bytes", len(pcm))
	return nil
}

// decodeWAV returns 16-bit stereo PCM at SampleRate.
func decodeWAV(data []byte) ([]byte, error) {
	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

// Loaded reports whether ref is ready to play.
func (b *Bank) Loaded(ref string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sounds[ref]
	return ok
}

// Play queues ref. Unknown sounds and plays beyond the queue size are
// dropped.
func (b *Bank) Play(ref string) bool {
	if !b.Loaded(ref) {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.reqs <- ref:
		return true
	default:
		return false
	}
}

func (b *Bank) loop() {
	for {
		select {
		case <-b.done:
			return
		case ref := <-b.reqs:
			b.start(ref)
		}
	}
}

func (b *Bank) start(ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	// Drop finished voices before adding another.
	live := b.voices[:0]
	for _, v := range b.voices {
		if v.IsPlaying() {
			live = append(live, v)
			continue
		}
		v.Close()
	}
	b.voices = live

	v, err := b.out.start(b.sounds[ref], b.volume)
	if err != nil {
		b.logger.Warn("failed to play sound", "sound", ref, "error", err)
		return
	}
	b.voices = append(b.voices, v)
}

// SetVolume sets the volume for sounds played from now on.
func (b *Bank) SetVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = clampVolume(v)
}

// Volume returns the current volume.
func (b *Bank) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// StopAll silences every playing sound.
func (b *Bank) StopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.voices {
		v.Pause()
		v.Close()
	}
	b.voices = nil
}

// Close stops playback and the background goroutine.
func (b *Bank) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.StopAll()
	return nil
}

func clampVolume(v float64) float64 {
	return min(1, max(0, v))
}
