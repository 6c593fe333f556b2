// Package ebitenaudio implements music.Player on top of ebiten's audio
// stack. One Factory per process: ebiten allows a single audio context.
package ebitenaudio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/autofighter/client/internal/music"
)

const defaultSampleRate = 44100

// endPollInterval is how often a player checks whether its stream finished.
// Ebiten has no end-of-track callback, so we poll.
const endPollInterval = 200 * time.Millisecond

type Factory struct {
	ctx        *audio.Context
	sampleRate int
}

func NewFactory(sampleRate int) *Factory {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &Factory{ctx: audio.NewContext(sampleRate), sampleRate: sampleRate}
}

// NewPlayer decodes the track by extension and wraps it as a music.Player.
// The file stays open for the lifetime of the player.
func (f *Factory) NewPlayer(track string, onEnded func()) (music.Player, error) {
	file, err := os.Open(track)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}

	var stream io.ReadSeeker
	switch strings.ToLower(filepath.Ext(track)) {
	case ".mp3":
		stream, err = mp3.DecodeWithSampleRate(f.sampleRate, file)
	case ".ogg":
		stream, err = vorbis.DecodeWithSampleRate(f.sampleRate, file)
	case ".wav":
		stream, err = wav.DecodeWithSampleRate(f.sampleRate, file)
	default:
		err = fmt.Errorf("unsupported track format %q", filepath.Ext(track))
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("decode track: %w", err)
	}

	inner, err := f.ctx.NewPlayer(stream)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create player: %w", err)
	}

	p := &player{
		inner:   inner,
		file:    file,
		onEnded: onEnded,
		done:    make(chan struct{}),
	}
	go p.watchEnd()
	return p, nil
}

type player struct {
	inner   *audio.Player
	file    *os.File
	onEnded func()
	done    chan struct{}

	mu      sync.Mutex
	started bool
	paused  bool
	closed  bool
	ended   bool
}

func (p *player) Play() {
	p.mu.Lock()
	p.started = true
	p.paused = false
	p.mu.Unlock()
	p.inner.Play()
}

func (p *player) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.inner.Pause()
}

func (p *player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	p.inner.SetVolume(v)
}

func (p *player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	err := p.inner.Close()
	p.file.Close()
	return err
}

// watchEnd polls for natural end-of-stream: the player was started, is not
// paused, and ebiten reports it no longer playing.
func (p *player) watchEnd() {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			fire := p.started && !p.paused && !p.closed && !p.ended && !p.inner.IsPlaying()
			if fire {
				p.ended = true
			}
			p.mu.Unlock()
			if fire && p.onEnded != nil {
				p.onEnded()
				return
			}
		}
	}
}
