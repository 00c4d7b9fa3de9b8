// Package device manages the stable per-installation identity sent with
// every auth request.
package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
)

type state struct {
	DeviceID string `json:"deviceId"`
}

// Manager resolves the device identity: forced by configuration, read from
// disk, or generated once and persisted.
type Manager struct {
	path   string
	forced string
}

// NewManager creates a Manager persisting under dataDir. forced, when
// non-empty, overrides anything on disk.
func NewManager(dataDir, forced string) *Manager {
	return &Manager{
		path:   filepath.Join(dataDir, "device.json"),
		forced: strings.TrimSpace(forced),
	}
}

// DeviceID returns the identity, generating and persisting one on first use.
func (m *Manager) DeviceID() (string, error) {
	if m.forced != "" {
		return m.forced, nil
	}

	if raw, err := os.ReadFile(m.path); err == nil {
		var st state
		if json.Unmarshal(raw, &st) == nil && st.DeviceID != "" {
			return st.DeviceID, nil
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}

	// Persistence is best-effort: a fresh id per run still logs in.
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err == nil {
		if raw, err := json.MarshalIndent(state{DeviceID: id.String()}, "", "  "); err == nil {
			_ = os.WriteFile(m.path, raw, 0o600)
		}
	}
	return id.String(), nil
}
