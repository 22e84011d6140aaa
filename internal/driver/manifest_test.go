package driver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestManifest_LoadMissing(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "manifest.json"))
	if err != nil {
		t.Fatalf("LoadManifest on missing file: %v", err)
	}
	if len(m.Entries) != 0 {
		t.Errorf("expected empty manifest, got %d entries", len(m.Entries))
	}
	if _, ok := m.Latest(); ok {
		t.Error("Latest on empty manifest should report false")
	}
}

func TestManifest_RecordSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "manifest.json")

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}

	first := m.Record(Entry{
		ChromeVersion: "119.0.6045.199",
		DriverVersion: "119.0.6045.105",
		Platform:      "linux64",
		SourceURL:     "https://edgedl.me.gvt1.com/chromedriver/119.0.6045.105/linux64/chromedriver-linux64.zip",
		Path:          "/usr/bin/chromedriver",
	})
	second := m.Record(Entry{
		ChromeVersion: "120.0.6099.224",
		DriverVersion: "120.0.6099.109",
		Platform:      "linux64",
		Path:          "/usr/bin/chromedriver",
	})

	if first.ID == "" || second.ID == "" {
		t.Fatal("Record must assign IDs")
	}
	if first.InstalledAt.IsZero() {
		t.Fatal("Record must assign timestamps")
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if diff := cmp.Diff(m.Entries, loaded.Entries, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("manifest roundtrip mismatch (-want +got):\n%s", diff)
	}

	latest, ok := loaded.Latest()
	if !ok || latest.DriverVersion != "120.0.6099.109" {
		t.Errorf("Latest = %+v, ok=%v", latest, ok)
	}
}

func TestManifest_SaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m, _ := LoadManifest(path)
	m.Record(Entry{DriverVersion: "120.0.6099.109"})
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after Save")
	}
}

func TestManifest_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected error for corrupt manifest")
	}
}
