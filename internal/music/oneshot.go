package music

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// OneShot is a single-slot player for voice lines and short SFX: a new
// request replaces whatever is playing. No crossfade, no session tokens.
type OneShot struct {
	factory Factory

	mu     sync.Mutex
	player Player
	volume float64 // 0..100
}

func NewOneShot(factory Factory) *OneShot {
	return &OneShot{factory: factory, volume: 50}
}

// Play replaces the current sound with src at the given volume.
func (o *OneShot) Play(src string, volume float64) {
	if src == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if volume >= 0 {
		o.volume = volume
	}
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
	player, err := o.factory.NewPlayer(src, func() { o.release() })
	if err != nil {
		log.Warn().Err(err).Str("src", src).Msg("one-shot player failed")
		return
	}
	o.player = player
	player.SetVolume(clamp01(o.volume / 100))
	player.Play()
}

// SetVolume applies to the currently playing sound and future ones.
func (o *OneShot) SetVolume(volume float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = volume
	if o.player != nil {
		o.player.SetVolume(clamp01(volume / 100))
	}
}

// Stop releases the current sound, if any.
func (o *OneShot) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
}

func (o *OneShot) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
