// Package config carries the runtime's environment configuration and the
// user-adjustable settings persisted between sessions.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Runtime is the process configuration, loaded from environment variables.
type Runtime struct {
	// APIBase overrides endpoint discovery entirely when set.
	APIBase string `env:"AF_API_BASE"`
	// Candidates are backend service hostnames probed in priority order.
	Candidates []string `env:"AF_BACKEND_CANDIDATES" envSeparator:"," envDefault:"backend,backend-llm-cuda,backend-llm-amd,backend-llm-cpu"`
	// BackendPort is the port every candidate and the fallback listen on.
	BackendPort int `env:"AF_BACKEND_PORT" envDefault:"59002"`

	LogLevel      string `env:"AF_LOG_LEVEL" envDefault:"info"`
	MusicDir      string `env:"AF_MUSIC_DIR" envDefault:"assets/music"`
	MusicManifest string `env:"AF_MUSIC_MANIFEST"`
}

// LoadRuntime parses the environment into a Runtime.
func LoadRuntime() (Runtime, error) {
	var cfg Runtime
	if err := env.Parse(&cfg); err != nil {
		return Runtime{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// CandidateURLs expands the candidate hostnames into base URLs.
func (r Runtime) CandidateURLs() []string {
	urls := make([]string, 0, len(r.Candidates))
	for _, host := range r.Candidates {
		if host == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf("http://%s:%d", host, r.BackendPort))
	}
	return urls
}

// FallbackURL is the hardcoded local default used when discovery finds
// nothing.
func (r Runtime) FallbackURL() string {
	return fmt.Sprintf("http://localhost:%d", r.BackendPort)
}

// Dir is the per-user data directory for persisted client state.
func Dir() (string, error) {
	if root, err := os.UserConfigDir(); err == nil && root != "" {
		return filepath.Join(root, "AutoFighter"), nil
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config", "AutoFighter"), nil
	}
	return "", errors.New("no config dir")
}
