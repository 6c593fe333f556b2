// Package app wires the runtime together: poll results drive the halt flag,
// the overlay, the persisted run pointer, and the audio session engine.
package app

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/autofighter/client/internal/api"
	"github.com/autofighter/client/internal/config"
	"github.com/autofighter/client/internal/discovery"
	"github.com/autofighter/client/internal/music"
	"github.com/autofighter/client/internal/overlay"
	"github.com/autofighter/client/internal/poll"
	"github.com/autofighter/client/internal/runstate"
)

type Runtime struct {
	API      *api.Client
	Poll     *poll.Engine
	Overlay  *overlay.Channel
	Music    *music.Engine
	Library  *music.Library
	Resolver *discovery.Resolver
	Runs     *runstate.Store

	policy   music.Policy
	settings config.Settings

	mu          sync.Mutex
	rng         *rand.Rand
	roomType    string
	musicChosen bool
}

// Options bundle the constructed components the runtime coordinates.
type Options struct {
	API      *api.Client
	Overlay  *overlay.Channel
	Music    *music.Engine
	Library  *music.Library
	Resolver *discovery.Resolver
	Runs     *runstate.Store
	Settings config.Settings
	Clock    clockwork.Clock
	Policy   music.Policy
}

func New(opts Options) *Runtime {
	r := &Runtime{
		API:      opts.API,
		Overlay:  opts.Overlay,
		Music:    opts.Music,
		Library:  opts.Library,
		Resolver: opts.Resolver,
		Runs:     opts.Runs,
		policy:   opts.Policy,
		settings: opts.Settings,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.Poll = poll.NewEngine(opts.API, poll.Hooks{
		OnMap:         r.handleMap,
		OnSnapshot:    r.handleSnapshot,
		OnBattleStart: r.handleBattleStart,
		OnBattleEnd:   r.handleBattleEnd,
		OnRunEnded:    r.handleRunEnded,
	}, opts.Clock, poll.Options{FPS: opts.Settings.Framerate})
	return r
}

// Start checks backend liveness, resumes a persisted run if one exists, and
// puts menu music on.
func (r *Runtime) Start(ctx context.Context) error {
	flavor, err := r.API.Flavor(ctx)
	if err != nil {
		base := r.Resolver.Cached()
		r.Overlay.PushBackendNotReady(base, err.Error())
		return err
	}
	log.Info().Str("flavor", flavor).Msg("backend ready")

	if runID := r.Runs.Load(); runID != "" {
		log.Info().Str("run_id", runID).Msg("resuming persisted run")
		r.Poll.Resume(ctx, runID)
	}
	r.menuMusic()
	return nil
}

// StartRun begins a new run and enters state polling.
func (r *Runtime) StartRun(ctx context.Context, party []string, damageType string, pressure int) (*api.RunState, error) {
	run, err := r.API.StartRun(ctx, party, damageType, pressure)
	if err != nil {
		return nil, err
	}
	if err := r.Runs.Save(run.RunID); err != nil {
		log.Warn().Err(err).Msg("could not persist run id")
	}
	r.Poll.StartRun(ctx, run.RunID)
	return run, nil
}

// RoomAction forwards a room action and enters battle polling when the
// response indicates a battle has begun.
func (r *Runtime) RoomAction(ctx context.Context, roomType string, action any) (json.RawMessage, error) {
	raw, err := r.API.RoomAction(ctx, r.Poll.RunID(), roomType, action)
	if err != nil {
		return nil, err
	}
	var resp struct {
		RoomType string `json:"room_type"`
	}
	if json.Unmarshal(raw, &resp) == nil && strings.HasPrefix(resp.RoomType, "battle") {
		r.Poll.EnterBattle(resp.RoomType)
	}
	return raw, nil
}

// Shutdown stops polling and fades the music out.
func (r *Runtime) Shutdown() {
	r.Poll.Stop()
	r.Music.Stop()
}

func (r *Runtime) handleMap(state *api.MapState) {
	// A blocking reward choice suppresses battle snapshots until resolved.
	r.Poll.SetHalt(state.RewardOpen())
}

func (r *Runtime) handleSnapshot(snap *api.Snapshot) {
	r.mu.Lock()
	if r.musicChosen || len(snap.Party) == 0 || len(snap.Foes) == 0 {
		r.mu.Unlock()
		return
	}
	r.musicChosen = true
	roomType := r.roomType
	playlist := music.SelectBattleMusic(r.Library, r.policy, r.rng, roomType,
		combatantIDs(snap.Party), combatantIDs(snap.Foes))
	r.mu.Unlock()

	r.Music.Start(r.settings.MusicVolume, playlist, true)
}

func (r *Runtime) handleBattleStart(roomType string) {
	r.mu.Lock()
	r.roomType = roomType
	r.musicChosen = false
	r.mu.Unlock()
}

func (r *Runtime) handleBattleEnd() {
	r.mu.Lock()
	r.musicChosen = false
	r.mu.Unlock()
	r.menuMusic()
}

func (r *Runtime) handleRunEnded() {
	if err := r.Runs.Clear(); err != nil {
		log.Warn().Err(err).Msg("could not clear run state")
	}
	r.Overlay.Home()
	r.menuMusic()
}

func (r *Runtime) menuMusic() {
	r.Music.Start(r.settings.MusicVolume, r.Library.FallbackPlaylist(music.CategoryNormal), true)
}

func combatantIDs(list []api.Combatant) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		if c.ID != "" {
			ids = append(ids, c.ID)
		} else {
			ids = append(ids, c.Name)
		}
	}
	return ids
}
