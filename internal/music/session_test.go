package music

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu      sync.Mutex
	track   string
	onEnded func()
	playing bool
	volume  float64
	closed  bool
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// finish simulates the track ending naturally.
func (p *fakePlayer) finish() {
	p.mu.Lock()
	ended := p.onEnded
	p.mu.Unlock()
	if ended != nil {
		ended()
	}
}

type fakeFactory struct {
	mu      sync.Mutex
	players []*fakePlayer
}

func (f *fakeFactory) NewPlayer(track string, onEnded func()) (Player, error) {
	p := &fakePlayer{track: track, onEnded: onEnded}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func (f *fakeFactory) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.players) == 0 {
		return nil
	}
	return f.players[len(f.players)-1]
}

func newTestSession(lib *Library) (*Engine, *fakeFactory) {
	factory := &fakeFactory{}
	e := NewEngine(factory, lib, clockwork.NewRealClock(), EngineOptions{
		FadeIn:  4 * time.Millisecond,
		FadeOut: 4 * time.Millisecond,
		Frame:   time.Millisecond,
	})
	e.Seed(1)
	return e, factory
}

const (
	sessionWait = 2 * time.Second
	sessionPoll = 2 * time.Millisecond
)

func TestStartFadesInToUserVolume(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)

	require.Equal(t, 1, factory.count())
	p := factory.last()
	assert.True(t, p.Playing())
	require.Eventually(t, func() bool {
		return p.Volume() > 0.49 && p.Volume() < 0.51
	}, sessionWait, sessionPoll, "fade-in should settle at volume/100")
}

func TestSamePlaylistOnlyReappliesVolume(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg", "b.ogg"}, true)
	token := e.Token()

	e.Start(80, []string{"a.ogg", "b.ogg"}, true)
	assert.Equal(t, 1, factory.count(), "identical request must not restart playback")
	assert.Equal(t, token, e.Token())
	p := factory.last()
	require.Eventually(t, func() bool {
		return p.Volume() > 0.79 && p.Volume() < 0.81
	}, sessionWait, sessionPoll)
}

func TestNewPlaylistCrossfades(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	old := factory.last()
	token := e.Token()

	e.Start(50, []string{"c.ogg"}, true)
	assert.Greater(t, e.Token(), token)
	require.Equal(t, 2, factory.count())
	assert.True(t, factory.last().Playing())

	require.Eventually(t, old.Closed, sessionWait, sessionPoll, "old track must fade out and close")
	assert.InDelta(t, 0, old.Volume(), 0.001)
}

func TestLoopFlagChangeRestarts(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	e.Start(50, []string{"a.ogg"}, false)
	assert.Equal(t, 2, factory.count())
}

func TestTrackEndAdvancesPlaylist(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg", "b.ogg"}, true)

	first := factory.last()
	require.Eventually(t, func() bool { return first.Volume() > 0.49 }, sessionWait, sessionPoll)

	first.finish()
	require.Equal(t, 2, factory.count())
	second := factory.last()
	assert.NotEqual(t, first.track, second.track)
	assert.True(t, second.Playing())
	// Track-to-track advance plays at full level immediately, no fade-in.
	assert.InDelta(t, 0.5, second.Volume(), 0.001)
	assert.True(t, first.Closed())
}

func TestLoopReshufflesOnExhaustion(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)

	factory.last().finish()
	require.Equal(t, 2, factory.count())
	assert.Equal(t, "a.ogg", factory.last().track)
	assert.True(t, factory.last().Playing())
}

func TestNonLoopExhaustionDropsToFallback(t *testing.T) {
	lib := NewLibrary()
	lib.AddTrack("fallback", CategoryNormal, "generic.ogg")
	e, factory := newTestSession(lib)
	e.Start(50, []string{"a.ogg"}, false)

	factory.last().finish()
	require.Equal(t, 2, factory.count())
	assert.Equal(t, "generic.ogg", factory.last().track)
}

func TestStaleTrackEndIsIgnored(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	old := factory.last()

	e.Stop()
	old.finish()
	assert.Equal(t, 1, factory.count(), "a superseded session must not start tracks")
}

func TestStopFadesOutAndCloses(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	p := factory.last()

	e.Stop()
	require.Eventually(t, p.Closed, sessionWait, sessionPoll)
}

func TestStopNowClosesImmediately(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	e.StopNow()
	assert.True(t, factory.last().Closed())
}

func TestSetVolumeScalesCurrentPlayer(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	p := factory.last()
	require.Eventually(t, func() bool { return p.Volume() > 0.49 }, sessionWait, sessionPoll)

	e.SetVolume(200)
	assert.InDelta(t, 1, p.Volume(), 0.001, "level clamps to 1")
	e.SetVolume(0)
	assert.InDelta(t, 0, p.Volume(), 0.001)
}

func TestEmptyPlaylistWithEmptyLibraryIsQuiet(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, nil, false)
	assert.Equal(t, 0, factory.count())
}

func TestEmptyPlaylistUsesFallbackLibrary(t *testing.T) {
	lib := NewLibrary()
	lib.AddTrack("fallback", CategoryBoss, "boss.ogg")
	e, factory := newTestSession(lib)
	e.Start(50, nil, false)
	require.Equal(t, 1, factory.count())
	assert.Equal(t, "boss.ogg", factory.last().track)
}

func TestResumeRestartsPausedPlayer(t *testing.T) {
	e, factory := newTestSession(NewLibrary())
	e.Start(50, []string{"a.ogg"}, true)
	p := factory.last()
	p.Pause()

	e.Resume()
	assert.True(t, p.Playing())
	assert.Equal(t, 1, factory.count())
}
