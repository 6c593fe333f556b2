// Package poll keeps the client's view of the current room and battle fresh.
// It owns two mutually exclusive polling loops, both driven by a single
// re-arming one-shot timer: the next poll is scheduled only after the
// previous request completes, so one loop never has two requests in flight,
// and switching modes cancels the other loop's timer first.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/autofighter/client/internal/api"
	"github.com/autofighter/client/internal/transport"
)

// Mode is the scheduler's state. The single mode field plus single timer
// slot make simultaneous state+battle polling unrepresentable.
type Mode int

const (
	Idle Mode = iota
	StatePolling
	BattlePolling
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case StatePolling:
		return "state"
	case BattlePolling:
		return "battle"
	default:
		return "unknown"
	}
}

const (
	defaultStateInterval  = 5 * time.Second
	defaultFPS            = 60
	defaultStallThreshold = 600
)

// API is what the scheduler needs from the api client.
type API interface {
	GetMap(ctx context.Context, runID string) (*api.MapState, error)
	BattleSnapshot(ctx context.Context, runID string) (*api.Snapshot, error)
}

// Hooks receive poll results. They are invoked outside the scheduler's lock,
// so a hook may call back into the engine (e.g. OnMap entering battle).
type Hooks struct {
	OnMap         func(*api.MapState)
	OnSnapshot    func(*api.Snapshot)
	OnBattleStart func(roomType string)
	OnBattleEnd   func()
	OnRunEnded    func()
}

// Options tune the two cadences and the stall threshold.
type Options struct {
	// StateInterval is the fixed low-frequency cadence. Defaults to 5s.
	StateInterval time.Duration
	// FPS derives the battle cadence: one snapshot per rendered frame.
	FPS int
	// StallThreshold is how many no-progress snapshots in a row mark the
	// battle as stuck. Observational only; no retries are forced.
	StallThreshold int
}

type Engine struct {
	api   API
	hooks Hooks
	clock clockwork.Clock

	stateInterval  time.Duration
	battleInterval time.Duration
	stallThreshold int

	mu           sync.Mutex
	ctx          context.Context
	mode         Mode
	runID        string
	roomType     string
	halt         bool
	stalled      int
	lastProgress int64
	timer        clockwork.Timer
	gen          uint64
}

func NewEngine(a API, hooks Hooks, clock clockwork.Clock, opts Options) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.StateInterval <= 0 {
		opts.StateInterval = defaultStateInterval
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.StallThreshold <= 0 {
		opts.StallThreshold = defaultStallThreshold
	}
	return &Engine{
		api:            a,
		hooks:          hooks,
		clock:          clock,
		stateInterval:  opts.StateInterval,
		battleInterval: time.Second / time.Duration(opts.FPS),
		stallThreshold: opts.StallThreshold,
	}
}

// StartRun enters StatePolling for a freshly started run.
func (e *Engine) StartRun(ctx context.Context, runID string) {
	e.mu.Lock()
	e.ctx = ctx
	e.runID = runID
	e.mode = StatePolling
	e.stalled = 0
	e.armLocked(e.stateInterval)
	e.mu.Unlock()
	log.Info().Str("run_id", runID).Msg("state polling started")
}

// Resume re-enters StatePolling from a persisted run id on load.
func (e *Engine) Resume(ctx context.Context, runID string) {
	e.StartRun(ctx, runID)
}

// EnterBattle switches to high-frequency battle polling. The pending state
// timer is cancelled before the battle timer is armed.
func (e *Engine) EnterBattle(roomType string) {
	e.mu.Lock()
	if e.mode == Idle {
		e.mu.Unlock()
		return
	}
	e.mode = BattlePolling
	e.roomType = roomType
	e.stalled = 0
	e.lastProgress = -1
	e.armLocked(e.battleInterval)
	e.mu.Unlock()

	log.Info().Str("room_type", roomType).Msg("battle polling started")
	if e.hooks.OnBattleStart != nil {
		e.hooks.OnBattleStart(roomType)
	}
}

// ExitBattle returns to state polling; the battle timer is cancelled first.
func (e *Engine) ExitBattle() {
	e.mu.Lock()
	if e.mode != BattlePolling {
		e.mu.Unlock()
		return
	}
	e.mode = StatePolling
	e.armLocked(e.stateInterval)
	e.mu.Unlock()

	log.Info().Msg("battle polling stopped")
	if e.hooks.OnBattleEnd != nil {
		e.hooks.OnBattleEnd()
	}
}

// SetHalt suppresses battle snapshot requests while a blocking UI state
// (reward popup, defeat screen) is open. Halted ticks skip the network call
// entirely but keep re-arming so polling resumes when the flag clears.
func (e *Engine) SetHalt(halt bool) {
	e.mu.Lock()
	e.halt = halt
	e.mu.Unlock()
}

// Stop cancels all polling without clearing the run; used at shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.mode = Idle
	e.cancelTimerLocked()
	e.mu.Unlock()
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Halted reports whether battle snapshot requests are currently suppressed.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halt
}

// Stalled reports whether consecutive battle snapshots have shown no
// progress past the threshold. The UI may surface a "stuck" affordance.
func (e *Engine) Stalled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stalled >= e.stallThreshold
}

// armLocked replaces the pending timer with a fresh one-shot. Bumping the
// generation makes any in-flight tick from the previous timer a no-op when
// it tries to apply its result.
func (e *Engine) armLocked(d time.Duration) {
	e.cancelTimerLocked()
	e.gen++
	gen := e.gen
	timer := e.clock.NewTimer(d)
	e.timer = timer
	ctx := e.ctx
	go func() {
		select {
		case <-timer.Chan():
			e.tick(gen)
		case <-ctx.Done():
			stopAndDrainTimer(timer)
		}
	}()
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		stopAndDrainTimer(e.timer)
		e.timer = nil
	}
	e.gen++
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine cannot leak, per the time.Timer.Stop contract.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.mode == Idle {
		e.mu.Unlock()
		return
	}
	mode := e.mode
	runID := e.runID
	halt := e.halt
	ctx := e.ctx
	e.mu.Unlock()

	switch mode {
	case StatePolling:
		e.stateTick(ctx, gen, runID)
	case BattlePolling:
		e.battleTick(ctx, gen, runID, halt)
	}
}

func (e *Engine) stateTick(ctx context.Context, gen uint64, runID string) {
	state, err := e.api.GetMap(ctx, runID)
	if err != nil {
		// Overlay already handled by the transport; keep polling.
		log.Warn().Err(err).Str("run_id", runID).Msg("state poll failed")
		e.rearm(gen, StatePolling, e.stateInterval)
		return
	}
	if state == nil {
		// Run no longer exists server-side: the terminal path.
		e.runEnded(gen, runID)
		return
	}
	if !e.rearm(gen, StatePolling, e.stateInterval) {
		return
	}
	if e.hooks.OnMap != nil {
		e.hooks.OnMap(state)
	}
}

func (e *Engine) battleTick(ctx context.Context, gen uint64, runID string, halt bool) {
	if halt {
		// Blocking popup open: skip the request, keep the cadence.
		e.rearm(gen, BattlePolling, e.battleInterval)
		return
	}
	snap, err := e.api.BattleSnapshot(ctx, runID)
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.IsNotFound() {
			e.runEnded(gen, runID)
			return
		}
		log.Warn().Err(err).Str("run_id", runID).Msg("battle poll failed")
		e.rearm(gen, BattlePolling, e.battleInterval)
		return
	}

	if snap.Over() {
		e.mu.Lock()
		if gen != e.gen || e.mode != BattlePolling {
			e.mu.Unlock()
			return
		}
		e.mode = StatePolling
		e.armLocked(e.stateInterval)
		e.mu.Unlock()

		if e.hooks.OnSnapshot != nil {
			e.hooks.OnSnapshot(snap)
		}
		log.Info().Str("run_id", runID).Str("result", snap.Result).Msg("battle resolved")
		if e.hooks.OnBattleEnd != nil {
			e.hooks.OnBattleEnd()
		}
		return
	}

	e.mu.Lock()
	if gen != e.gen || e.mode != BattlePolling {
		e.mu.Unlock()
		return
	}
	if snap.Progress == e.lastProgress {
		e.stalled++
		if e.stalled == e.stallThreshold {
			log.Warn().Str("run_id", runID).Int("ticks", e.stalled).Msg("battle appears stalled")
		}
	} else {
		e.stalled = 0
		e.lastProgress = snap.Progress
	}
	e.armLocked(e.battleInterval)
	e.mu.Unlock()

	if e.hooks.OnSnapshot != nil {
		e.hooks.OnSnapshot(snap)
	}
}

// rearm schedules the next poll if this tick's generation and mode are still
// current. Returns false when the tick has been superseded.
func (e *Engine) rearm(gen uint64, mode Mode, d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.mode != mode {
		return false
	}
	e.armLocked(d)
	return true
}

// runEnded routes the sole fatal-to-the-run condition: clear local run
// state, drop to Idle, and hand the user back toward the menu. Never shown
// as an error overlay.
func (e *Engine) runEnded(gen uint64, runID string) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.mode = Idle
	e.runID = ""
	e.stalled = 0
	e.cancelTimerLocked()
	e.mu.Unlock()

	log.Info().Str("run_id", runID).Msg("run no longer exists, returning to menu")
	if e.hooks.OnRunEnded != nil {
		e.hooks.OnRunEnded()
	}
}
