package music

import (
	"math/rand"
	"strings"
)

// Policy makes the selection tie-breaks configurable instead of hard-coding
// them: which identity gets the heavier weight, and how boss rooms fall
// back when the first opponent has no dedicated theme.
type Policy struct {
	// FavoriteIdentity receives FavoriteWeight in the weighted draw instead
	// of GenericWeight, modeling a favorite/boss theme priority.
	FavoriteIdentity string
	FavoriteWeight   int
	GenericWeight    int
}

// DefaultPolicy matches the shipped game's behavior.
func DefaultPolicy() Policy {
	return Policy{FavoriteIdentity: "luna", FavoriteWeight: 3, GenericWeight: 1}
}

// Weighted is one candidate playlist with its draw weight.
type Weighted struct {
	Tracks []string
	Weight int
}

// PickWeighted performs a cumulative-weight draw and returns the index of
// the chosen candidate, or -1 when there is nothing to pick. Pure; callers
// own the rng.
func PickWeighted(rng *rand.Rand, candidates []Weighted) int {
	total := 0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return -1
	}
	roll := rng.Float64() * float64(total)
	for i, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		roll -= float64(c.Weight)
		if roll < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// CategoryForRoom maps a room type to a music category.
func CategoryForRoom(roomType string) string {
	switch roomType {
	case "battle-weak":
		return CategoryWeak
	case "battle-boss-floor":
		return CategoryBoss
	default:
		return CategoryNormal
	}
}

// SelectBattleMusic picks the playlist for a battle context. Boss rooms
// prefer the first opponent's dedicated boss playlist outright, then the
// fallback boss library, then fallback normal. Otherwise each party and
// opponent identity with a themed playlist for the category becomes a
// weighted candidate; with no candidates the fallback library for the
// category is used, and failing that, fallback normal.
func SelectBattleMusic(lib *Library, policy Policy, rng *rand.Rand, roomType string, party, foes []string) []string {
	category := CategoryForRoom(roomType)

	if category == CategoryBoss {
		if len(foes) > 0 {
			if playlist := lib.CharacterPlaylist(foes[0], CategoryBoss); len(playlist) > 0 {
				return playlist
			}
		}
		if fb := lib.FallbackPlaylist(CategoryBoss); len(fb) > 0 {
			return fb
		}
		return lib.FallbackPlaylist(CategoryNormal)
	}

	// Until both sides are known the themed draw would be lopsided; use the
	// generic library for the tier.
	if strings.HasPrefix(roomType, "battle") && (len(party) == 0 || len(foes) == 0) {
		if fb := lib.FallbackPlaylist(category); len(fb) > 0 {
			return fb
		}
		return lib.FallbackPlaylist(CategoryNormal)
	}

	var candidates []Weighted
	add := func(identity string) {
		playlist := lib.CharacterPlaylist(identity, category)
		if len(playlist) == 0 {
			return
		}
		weight := policy.GenericWeight
		if strings.EqualFold(identity, policy.FavoriteIdentity) {
			weight = policy.FavoriteWeight
		}
		candidates = append(candidates, Weighted{Tracks: playlist, Weight: weight})
	}
	for _, id := range party {
		add(id)
	}
	for _, id := range foes {
		add(id)
	}

	if i := PickWeighted(rng, candidates); i >= 0 {
		return candidates[i].Tracks
	}
	if fb := lib.FallbackPlaylist(category); len(fb) > 0 {
		return fb
	}
	return lib.FallbackPlaylist(CategoryNormal)
}
