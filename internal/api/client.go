// Package api wraps the transport with typed calls for the game server's
// HTTP surface. Every method is a thin one-liner over the transport
// primitive; the polling scheduler and the application sit on top of these.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/autofighter/client/internal/transport"
)

// ErrNotReady is returned for resources the server writes asynchronously
// (battle summaries, event logs) when they do not exist yet.
var ErrNotReady = errors.New("not ready")

type Client struct {
	t *transport.Client
}

func NewClient(t *transport.Client) *Client {
	return &Client{t: t}
}

func decode[T any](payload []byte, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// Flavor runs the liveness probe. The overlay is suppressed here; callers
// surface backend-not-ready themselves with the attempted base URL.
func (c *Client) Flavor(ctx context.Context) (string, error) {
	body, err := c.t.Get(ctx, "/", transport.Options{SuppressOverlay: true})
	out, err := decode[struct {
		Flavor string `json:"flavor"`
	}](body, err)
	return out.Flavor, err
}

// StartRun begins a new run with the given party.
func (c *Client) StartRun(ctx context.Context, party []string, damageType string, pressure int) (*RunState, error) {
	body := marshal(map[string]any{"party": party, "damage_type": damageType, "pressure": pressure})
	out, err := decode[RunState](c.t.Post(ctx, "/run/start", body, transport.Options{}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EndRun abandons one run.
func (c *Client) EndRun(ctx context.Context, runID string) error {
	_, err := c.t.Delete(ctx, "/run/"+runID, transport.Options{})
	return err
}

// EndAllRuns abandons every active run.
func (c *Client) EndAllRuns(ctx context.Context) error {
	_, err := c.t.Delete(ctx, "/runs", transport.Options{})
	return err
}

// ActiveRuns lists runs the server still knows about.
func (c *Client) ActiveRuns(ctx context.Context) ([]ActiveRun, error) {
	out, err := decode[struct {
		Runs []ActiveRun `json:"runs"`
	}](c.t.Get(ctx, "/runs", transport.Options{}))
	return out.Runs, err
}

// GetMap fetches the run's map/state. A 404 means the run no longer exists
// and yields (nil, nil): the terminal signal, never an overlay.
func (c *Client) GetMap(ctx context.Context, runID string) (*MapState, error) {
	body, err := c.t.Get(ctx, "/map/"+runID, transport.Options{})
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	out, err := decode[MapState](body, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RoomAction posts an action to the current room.
func (c *Client) RoomAction(ctx context.Context, runID, roomType string, action any) (json.RawMessage, error) {
	payload, ok := action.(map[string]any)
	if !ok {
		payload = map[string]any{"action": action}
	}
	body, err := c.t.Post(ctx, fmt.Sprintf("/rooms/%s/%s", runID, roomType), marshal(payload), transport.Options{})
	return json.RawMessage(body), err
}

// BattleSnapshot requests the live battle state for one tick of the battle
// poll loop.
func (c *Client) BattleSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	body, err := c.t.Post(ctx, fmt.Sprintf("/rooms/%s/battle", runID),
		marshal(map[string]any{"action": "snapshot"}), transport.Options{})
	if err != nil {
		return nil, err
	}
	out, err := decode[Snapshot](body, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceRoom moves the run to the next room.
func (c *Client) AdvanceRoom(ctx context.Context, runID string) (json.RawMessage, error) {
	body, err := c.t.Post(ctx, fmt.Sprintf("/run/%s/next", runID), nil, transport.Options{})
	return json.RawMessage(body), err
}

// PauseCombat and ResumeCombat are room-action sugar.
func (c *Client) PauseCombat(ctx context.Context, runID string) error {
	_, err := c.RoomAction(ctx, runID, "battle", "pause")
	return err
}

func (c *Client) ResumeCombat(ctx context.Context, runID string) error {
	_, err := c.RoomAction(ctx, runID, "battle", "resume")
	return err
}

// UIState fetches the backend's state-based UI view.
func (c *Client) UIState(ctx context.Context) (*UIState, error) {
	out, err := decode[UIState](c.t.Get(ctx, "/ui", transport.Options{}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SendAction posts a UI action with parameters.
func (c *Client) SendAction(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	body, err := c.t.Post(ctx, "/ui/action", marshal(map[string]any{"action": action, "params": params}), transport.Options{})
	return json.RawMessage(body), err
}

// ChooseCard picks one of the offered cards.
func (c *Client) ChooseCard(ctx context.Context, runID, cardID string) error {
	_, err := c.t.Post(ctx, "/cards/"+runID, marshal(map[string]any{"card": cardID}), transport.Options{})
	return err
}

// ChooseRelic picks one of the offered relics.
func (c *Client) ChooseRelic(ctx context.Context, runID, relicID string) error {
	_, err := c.t.Post(ctx, "/relics/"+runID, marshal(map[string]any{"relic": relicID}), transport.Options{})
	return err
}

// AcknowledgeLoot confirms non-blocking loot so the run can advance.
func (c *Client) AcknowledgeLoot(ctx context.Context, runID string) error {
	_, err := c.t.Post(ctx, "/loot/"+runID, marshal(map[string]any{}), transport.Options{})
	return err
}

// BattleSummary fetches the post-battle report; ErrNotReady until the server
// has written it.
func (c *Client) BattleSummary(ctx context.Context, runID string, index int) (*BattleSummary, error) {
	body, err := c.t.Get(ctx, fmt.Sprintf("/run/%s/battles/%d/summary", runID, index),
		transport.Options{SuppressOverlay: true})
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.IsNotFound() {
			return nil, ErrNotReady
		}
		return nil, err
	}
	out, err := decode[BattleSummary](body, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BattleEvents fetches the battle event log; ErrNotReady until written.
func (c *Client) BattleEvents(ctx context.Context, runID string, index int) ([]BattleEvent, error) {
	body, err := c.t.Get(ctx, fmt.Sprintf("/run/%s/battles/%d/events", runID, index),
		transport.Options{SuppressOverlay: true})
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.IsNotFound() {
			return nil, ErrNotReady
		}
		return nil, err
	}
	return decode[[]BattleEvent](body, nil)
}

// Catalog fetches all reference catalogs concurrently. Failures here are
// background noise, so the overlay is suppressed.
func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	var (
		out  Catalog
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fetch := func(name string, assign func([]CatalogEntry)) {
		defer wg.Done()
		body, err := c.t.Get(ctx, "/catalog/"+name, transport.Options{SuppressOverlay: true})
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		var parsed map[string][]CatalogEntry
		if err := json.Unmarshal(body, &parsed); err != nil {
			errs = append(errs, fmt.Errorf("decode %s catalog: %w", name, err))
			return
		}
		assign(parsed[name])
	}
	wg.Add(4)
	go fetch("cards", func(e []CatalogEntry) { out.Cards = e })
	go fetch("relics", func(e []CatalogEntry) { out.Relics = e })
	go fetch("dots", func(e []CatalogEntry) { out.Dots = e })
	go fetch("hots", func(e []CatalogEntry) { out.Hots = e })
	wg.Wait()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return &out, nil
}

// WipeSave deletes the server-side save data.
func (c *Client) WipeSave(ctx context.Context) error {
	_, err := c.t.Post(ctx, "/save/wipe", nil, transport.Options{})
	return err
}

// BackupSave downloads the opaque save blob.
func (c *Client) BackupSave(ctx context.Context) ([]byte, error) {
	return c.t.Get(ctx, "/save/backup", transport.Options{})
}

// RestoreSave uploads a previously backed-up save blob as a raw binary body.
func (c *Client) RestoreSave(ctx context.Context, blob []byte) error {
	_, err := c.t.Post(ctx, "/save/restore", blob,
		transport.Options{ContentType: "application/octet-stream"})
	return err
}

// GetLRMConfig and SetLRMConfig manage the narrator model configuration.
func (c *Client) GetLRMConfig(ctx context.Context) (*LRMConfig, error) {
	out, err := decode[LRMConfig](c.t.Get(ctx, "/config/lrm", transport.Options{}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetLRMConfig(ctx context.Context, cfg LRMConfig) error {
	_, err := c.t.Post(ctx, "/config/lrm", marshal(cfg), transport.Options{})
	return err
}

// TestLRMConfig asks the server to validate the configured model.
func (c *Client) TestLRMConfig(ctx context.Context, cfg LRMConfig) (json.RawMessage, error) {
	body, err := c.t.Post(ctx, "/config/lrm/test", marshal(cfg), transport.Options{})
	return json.RawMessage(body), err
}

// PlayerEditor fetches the customization state.
func (c *Client) PlayerEditor(ctx context.Context) (*EditorState, error) {
	out, err := decode[EditorState](c.t.Get(ctx, "/player/editor", transport.Options{}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SavePlayerEditor stores the customization state.
func (c *Client) SavePlayerEditor(ctx context.Context, state EditorState) error {
	_, err := c.t.Put(ctx, "/player/editor", marshal(state), transport.Options{})
	return err
}

// UpgradePlayer spends resources on a player level.
func (c *Client) UpgradePlayer(ctx context.Context, playerID string) error {
	_, err := c.t.Post(ctx, fmt.Sprintf("/players/%s/upgrade", playerID), nil, transport.Options{})
	return err
}

// UpgradePlayerStat spends resources on a single stat.
func (c *Client) UpgradePlayerStat(ctx context.Context, playerID, stat string) error {
	_, err := c.t.Post(ctx, fmt.Sprintf("/players/%s/upgrade-stat", playerID),
		marshal(map[string]any{"stat": stat}), transport.Options{})
	return err
}

// Players fetches the roster and account progression.
func (c *Client) Players(ctx context.Context) (*Roster, error) {
	out, err := decode[Roster](c.t.Get(ctx, "/players", transport.Options{}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}
