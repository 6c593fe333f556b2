// Package music picks and crossfades background tracks for the current game
// context. Selection is pure and unit-testable; playback goes through the
// Player interface, implemented for real audio in the ebitenaudio package.
package music

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Categories mirror the room difficulty tiers.
const (
	CategoryWeak   = "weak"
	CategoryNormal = "normal"
	CategoryBoss   = "boss"
)

// fallbackKey is the reserved identity feeding the generic library.
const fallbackKey = "fallback"

// Library holds per-identity playlists by category plus the generic fallback
// library used when no identity has themed music.
type Library struct {
	characters map[string]map[string][]string
	fallback   map[string][]string
}

func NewLibrary() *Library {
	return &Library{
		characters: map[string]map[string][]string{},
		fallback:   map[string][]string{},
	}
}

// AddTrack registers one track. The identity "fallback" routes to the
// generic library.
func (l *Library) AddTrack(identity, category, track string) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if category == "" {
		category = "other"
	}
	if identity == fallbackKey {
		l.fallback[category] = append(l.fallback[category], track)
		return
	}
	if l.characters[identity] == nil {
		l.characters[identity] = map[string][]string{}
	}
	l.characters[identity][category] = append(l.characters[identity][category], track)
}

// CharacterPlaylist returns a copy of an identity's playlist for a category,
// in indexed order. The caller decides if and when to shuffle.
func (l *Library) CharacterPlaylist(identity, category string) []string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	tracks := l.characters[identity][category]
	return append([]string(nil), tracks...)
}

// FallbackPlaylist returns a copy of the generic library for a category.
func (l *Library) FallbackPlaylist(category string) []string {
	return append([]string(nil), l.fallback[category]...)
}

// AllFallback flattens the generic library across categories.
func (l *Library) AllFallback() []string {
	var all []string
	for _, tracks := range l.fallback {
		all = append(all, tracks...)
	}
	return all
}

// LoadManifest reads a yaml manifest of identity → category → track paths.
func LoadManifest(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read music manifest: %w", err)
	}
	var manifest map[string]map[string][]string
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse music manifest: %w", err)
	}
	lib := NewLibrary()
	for identity, categories := range manifest {
		for category, tracks := range categories {
			for _, track := range tracks {
				lib.AddTrack(identity, category, track)
			}
		}
	}
	return lib, nil
}

// LoadDir walks root expecting <identity>/<category>/<track> and collects
// every playable file.
func LoadDir(root string) (*Library, error) {
	lib := NewLibrary()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".mp3", ".ogg", ".wav":
		default:
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			return nil
		}
		category := "other"
		if len(parts) >= 3 {
			category = parts[1]
		}
		lib.AddTrack(parts[0], category, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan music dir: %w", err)
	}
	return lib, nil
}
