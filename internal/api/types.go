package api

// Room is one node in the run's map.
type Room struct {
	Index    int    `json:"index"`
	Floor    int    `json:"floor"`
	RoomType string `json:"room_type"`
	Pressure int    `json:"pressure"`
}

// MapState is the state-poll payload: where the run currently is and which
// choices, if any, are blocking progression.
type MapState struct {
	RunID        string   `json:"run_id"`
	Rooms        []Room   `json:"rooms"`
	CurrentIndex int      `json:"current_index"`
	CurrentRoom  string   `json:"current_room"`
	NextRoom     string   `json:"next_room"`
	Party        []string `json:"party"`
	CardChoices  []Card   `json:"card_choices"`
	RelicChoices []Relic  `json:"relic_choices"`
}

// RewardOpen reports whether a blocking reward choice is pending. Loot and
// gold are shown as floating messages, not a blocking popup, so only
// selectable choices count.
func (m *MapState) RewardOpen() bool {
	if m == nil {
		return false
	}
	return len(m.CardChoices) > 0 || len(m.RelicChoices) > 0
}

// Combatant is the slim identity+vitals view used by snapshots.
type Combatant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"max_hp"`
}

// Snapshot describes the live state of an in-progress battle.
type Snapshot struct {
	Ended    bool        `json:"ended"`
	Result   string      `json:"result"`
	Progress int64       `json:"progress"`
	Party    []Combatant `json:"party"`
	Foes     []Combatant `json:"foes"`
}

// Over reports whether the battle has resolved.
func (s *Snapshot) Over() bool {
	if s == nil {
		return false
	}
	return s.Ended || s.Result != ""
}

// RunState is the response to starting a run.
type RunState struct {
	RunID string    `json:"run_id"`
	Map   *MapState `json:"map"`
}

// ActiveRun is one entry of the active-runs listing.
type ActiveRun struct {
	RunID string   `json:"run_id"`
	Party []string `json:"party"`
}

type Card struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stars int    `json:"stars"`
	About string `json:"about"`
}

type Relic struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stars int    `json:"stars"`
	About string `json:"about"`
}

// CatalogEntry is one row of a reference catalog (cards, relics, dots, hots).
type CatalogEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	About string `json:"about"`
}

// Catalog bundles all reference catalogs fetched at session start.
type Catalog struct {
	Cards  []CatalogEntry `json:"cards"`
	Relics []CatalogEntry `json:"relics"`
	Dots   []CatalogEntry `json:"dots"`
	Hots   []CatalogEntry `json:"hots"`
}

// UIState is the backend's simplified state-based view of the client.
type UIState struct {
	Mode    string         `json:"mode"`
	State   map[string]any `json:"state"`
	Actions []string       `json:"actions"`
}

// Player is one roster entry.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Element string `json:"element"`
	Level   int    `json:"level"`
}

// Roster is the player listing plus account-level progression.
type Roster struct {
	Players []Player `json:"players"`
	User    User     `json:"user"`
}

type User struct {
	Level        int `json:"level"`
	Exp          int `json:"exp"`
	NextLevelExp int `json:"next_level_exp"`
}

// LRMConfig configures the optional language-model narrator backend.
type LRMConfig struct {
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	Enabled  bool   `json:"enabled"`
}

// EditorState is the player customization payload.
type EditorState struct {
	PlayerID string         `json:"player_id"`
	Fields   map[string]any `json:"fields"`
}

// BattleSummary is the post-battle report written asynchronously by the
// server; 404 means it is not ready yet.
type BattleSummary struct {
	Result string         `json:"result"`
	Turns  int            `json:"turns"`
	Stats  map[string]any `json:"stats"`
}

// BattleEvent is one entry of the battle event log.
type BattleEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}
