package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const settingsFile = "settings.json"

// Settings are the user-adjustable knobs persisted between sessions.
type Settings struct {
	SFXVolume     float64 `json:"sfxVolume"`
	MusicVolume   float64 `json:"musicVolume"`
	VoiceVolume   float64 `json:"voiceVolume"`
	Framerate     int     `json:"framerate"`
	Autocraft     bool    `json:"autocraft"`
	ReducedMotion bool    `json:"reducedMotion"`
}

// DefaultSettings mirror a fresh install.
func DefaultSettings() Settings {
	return Settings{
		SFXVolume:   50,
		MusicVolume: 50,
		VoiceVolume: 50,
		Framerate:   60,
		Autocraft:   true,
	}
}

// SettingsStore persists Settings as a JSON blob in the client data dir.
type SettingsStore struct {
	dir string
}

func NewSettingsStore(dir string) *SettingsStore {
	return &SettingsStore{dir: dir}
}

func (s *SettingsStore) path() string {
	return filepath.Join(s.dir, settingsFile)
}

// Load returns the stored settings, or defaults when the file is missing or
// unreadable. Corrupt settings never block startup.
func (s *SettingsStore) Load() Settings {
	out := DefaultSettings()
	data, err := os.ReadFile(s.path())
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return DefaultSettings()
	}
	return out
}

// Save writes the full settings blob.
func (s *SettingsStore) Save(settings Settings) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Update merges a partial change into the stored settings.
func (s *SettingsStore) Update(mutate func(*Settings)) error {
	settings := s.Load()
	mutate(&settings)
	return s.Save(settings)
}

// Clear removes the stored settings.
func (s *SettingsStore) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear settings: %w", err)
	}
	return nil
}
