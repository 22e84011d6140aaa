package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry records one completed install.
type Entry struct {
	ID            string    `json:"id"`
	ChromeVersion string    `json:"chrome_version"`
	DriverVersion string    `json:"driver_version"`
	Platform      string    `json:"platform"`
	SourceURL     string    `json:"source_url"`
	Path          string    `json:"path"`
	InstalledAt   time.Time `json:"installed_at"`
}

// Manifest is the on-disk install history.
type Manifest struct {
	path    string
	Entries []Entry `json:"entries"`
}

// LoadManifest reads the manifest at path; a missing file yields an
// empty manifest bound to that path.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	m.path = path
	return m, nil
}

// Record appends an install entry, assigning an ID and timestamp when
// absent, and returns the stored entry.
func (m *Manifest) Record(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.InstalledAt.IsZero() {
		e.InstalledAt = time.Now().UTC()
	}
	m.Entries = append(m.Entries, e)
	return e
}

// Latest returns the most recent entry.
func (m *Manifest) Latest() (Entry, bool) {
	if len(m.Entries) == 0 {
		return Entry{}, false
	}
	return m.Entries[len(m.Entries)-1], true
}

// Save writes the manifest atomically (temp file + rename).
func (m *Manifest) Save() error {
	if m.path == "" {
		return fmt.Errorf("manifest has no path")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
