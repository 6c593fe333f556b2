package music

import (
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Player is a single playable track instance.
type Player interface {
	Play()
	Pause()
	// SetVolume takes the effective level in [0,1].
	SetVolume(v float64)
	Close() error
}

// Factory creates players for track refs. onEnded fires once when the track
// finishes naturally.
type Factory interface {
	NewPlayer(track string, onEnded func()) (Player, error)
}

const (
	defaultFadeIn  = 650 * time.Millisecond
	defaultFadeOut = 400 * time.Millisecond
	defaultFrame   = 16 * time.Millisecond
)

// EngineOptions tune the fade curves.
type EngineOptions struct {
	FadeIn  time.Duration
	FadeOut time.Duration
	// Frame is the interpolation step period, matching the render loop.
	Frame time.Duration
}

// Engine manages crossfaded playlist playback. Every call that changes the
// desired playlist or stops playback bumps the session token; in-flight
// callbacks from older sessions observe the mismatch and become no-ops.
// That token check is the sole mechanism preventing two audible generations.
type Engine struct {
	factory Factory
	lib     *Library
	clock   clockwork.Clock

	fadeIn  time.Duration
	fadeOut time.Duration
	frame   time.Duration

	mu         sync.Mutex
	rng        *rand.Rand
	token      uint64
	player     Player
	playlist   []string
	original   []string
	index      int
	loop       bool
	volume     float64 // user volume, 0..100
	fadeFactor float64 // multiplicative, 0..1
}

func NewEngine(factory Factory, lib *Library, clock clockwork.Clock, opts EngineOptions) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.FadeIn <= 0 {
		opts.FadeIn = defaultFadeIn
	}
	if opts.FadeOut <= 0 {
		opts.FadeOut = defaultFadeOut
	}
	if opts.Frame <= 0 {
		opts.Frame = defaultFrame
	}
	return &Engine{
		factory:    factory,
		lib:        lib,
		clock:      clock,
		fadeIn:     opts.FadeIn,
		fadeOut:    opts.FadeOut,
		frame:      opts.Frame,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		volume:     50,
		fadeFactor: 1,
	}
}

// Seed fixes the shuffle rng; tests use it for deterministic order.
func (e *Engine) Seed(seed int64) {
	e.mu.Lock()
	e.rng = rand.New(rand.NewSource(seed))
	e.mu.Unlock()
}

// Token exposes the current session token for observability and tests.
func (e *Engine) Token() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// Start begins playing a playlist. Requesting the playlist that is already
// playing (same content, same loop flag) only re-applies the volume, so
// repeated state snapshots asking for the "same" music never restart it.
// A different playlist supersedes the old session: the new first track
// fades in while the old track fades out and is disposed concurrently.
func (e *Engine) Start(volume float64, playlist []string, loop bool) {
	e.mu.Lock()
	if volume >= 0 {
		e.volume = volume
	}
	if e.player != nil && loop == e.loop && slices.Equal(playlist, e.original) {
		e.applyVolumeLocked()
		e.mu.Unlock()
		return
	}

	old := e.player
	oldLevel := e.levelLocked()
	e.player = nil
	e.token++
	token := e.token
	e.original = slices.Clone(playlist)
	if len(playlist) > 0 {
		e.playlist = e.shuffleLocked(slices.Clone(playlist))
		e.index = 0
		e.loop = loop
	} else {
		e.playlist = nil
	}
	log.Debug().Uint64("session", token).Int("tracks", len(e.playlist)).Bool("loop", loop).Msg("music playlist")
	e.startTrackLocked(token, true)
	e.mu.Unlock()

	if old != nil {
		go e.fadeOutAndClose(old, oldLevel)
	}
}

// SetVolume re-applies the user volume on top of the current fade factor.
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	e.volume = volume
	e.applyVolumeLocked()
	e.mu.Unlock()
}

// Resume restarts a paused track, or the current playlist if the player was
// released.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.player != nil {
		e.applyVolumeLocked()
		e.player.Play()
		e.mu.Unlock()
		return
	}
	e.token++
	e.startTrackLocked(e.token, false)
	e.mu.Unlock()
}

// Stop supersedes the session and fades the current track out before
// releasing it.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.token++
	player := e.player
	level := e.levelLocked()
	e.player = nil
	e.fadeFactor = 1
	e.mu.Unlock()

	if player != nil {
		go e.fadeOutAndClose(player, level)
	}
}

// StopNow releases immediately. Acceptable during teardown only.
func (e *Engine) StopNow() {
	e.mu.Lock()
	e.token++
	player := e.player
	e.player = nil
	e.fadeFactor = 1
	e.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
}

// startTrackLocked begins playback of the current position. An empty
// playlist falls back to the generic library.
func (e *Engine) startTrackLocked(token uint64, fadeIn bool) {
	src := ""
	if len(e.playlist) > 0 {
		src = e.playlist[e.index]
	} else if fb := e.lib.FallbackPlaylist(CategoryNormal); len(fb) > 0 {
		src = fb[e.rng.Intn(len(fb))]
	} else if all := e.lib.AllFallback(); len(all) > 0 {
		src = all[e.rng.Intn(len(all))]
	}
	if src == "" {
		log.Debug().Uint64("session", token).Msg("music start skipped, no track")
		return
	}

	player, err := e.factory.NewPlayer(src, func() { e.onTrackEnded(token) })
	if err != nil {
		log.Warn().Err(err).Str("track", src).Msg("music player failed")
		return
	}
	e.player = player
	if fadeIn {
		e.fadeFactor = 0
	} else {
		e.fadeFactor = 1
	}
	e.applyVolumeLocked()
	player.Play()
	log.Debug().
		Uint64("session", token).
		Str("track", src).
		Int("index", e.index).
		Bool("loop", e.loop).
		Msg("music start")
	if fadeIn {
		go e.fadeInCurrent(token)
	}
}

// onTrackEnded advances the playlist on natural end-of-track. Exhausted
// playlists reshuffle and restart when looping, otherwise drop to the
// fallback library.
func (e *Engine) onTrackEnded(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.token {
		return // superseded session
	}
	if old := e.player; old != nil {
		e.player = nil
		go old.Close()
	}
	if len(e.playlist) > 0 {
		e.index++
		if e.index >= len(e.playlist) {
			if e.loop {
				e.playlist = e.shuffleLocked(e.playlist)
				e.index = 0
			} else {
				e.playlist = nil
			}
		}
	}
	e.startTrackLocked(token, false)
}

// fadeInCurrent ramps the fade factor 0→1 over the fade-in duration,
// re-checking the session token every frame.
func (e *Engine) fadeInCurrent(token uint64) {
	steps := int(e.fadeIn / e.frame)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		<-e.clock.After(e.frame)
		e.mu.Lock()
		if token != e.token || e.player == nil {
			e.mu.Unlock()
			return
		}
		e.fadeFactor = float64(i) / float64(steps)
		e.applyVolumeLocked()
		e.mu.Unlock()
	}
}

// fadeOutAndClose runs the old track's independent fade curve and disposes
// it. Does not touch engine state, so it never blocks the new session.
func (e *Engine) fadeOutAndClose(player Player, fromLevel float64) {
	steps := int(e.fadeOut / e.frame)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		<-e.clock.After(e.frame)
		player.SetVolume(fromLevel * (1 - float64(i)/float64(steps)))
	}
	_ = player.Close()
}

func (e *Engine) applyVolumeLocked() {
	if e.player == nil {
		return
	}
	e.player.SetVolume(e.levelLocked())
}

// levelLocked is user volume times fade factor, clamped to [0,1].
func (e *Engine) levelLocked() float64 {
	level := e.volume / 100
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}
	fade := e.fadeFactor
	if fade < 0 {
		fade = 0
	} else if fade > 1 {
		fade = 1
	}
	return level * fade
}

func (e *Engine) shuffleLocked(tracks []string) []string {
	e.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	return tracks
}
