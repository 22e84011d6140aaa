package provision

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"chromeprov/internal/config"
	"chromeprov/internal/driver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeVersionScript writes an executable script that reports a version
// string, standing in for a real chrome/chromedriver binary.
func fakeVersionScript(t *testing.T, dir, name, output string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\necho \"%s\"\n", output)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// driverArchive builds a feed-layout zip whose chromedriver entry is an
// executable script reporting the given version line.
func driverArchive(t *testing.T, versionLine string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.CreateHeader(&zip.FileHeader{Name: "chromedriver-linux64/chromedriver"})
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(f, "#!/bin/sh\necho \"%s\"\n", versionLine)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// cftServer serves LATEST_RELEASE, the known-good feed, and the driver
// archive from one endpoint.
func cftServer(t *testing.T, driverVersion, driverLine string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/LATEST_RELEASE_120":
			fmt.Fprint(w, driverVersion)
		case "/known-good-versions-with-downloads.json":
			fmt.Fprintf(w, `{"versions": [{"version": %q, "downloads": {"chromedriver": [{"platform": "linux64", "url": %q}]}}]}`,
				driverVersion, server.URL+"/dl/chromedriver-linux64.zip")
		case "/dl/chromedriver-linux64.zip":
			w.Write(driverArchive(t, driverLine))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(func() {
		server.Close()
		if tr, ok := http.DefaultTransport.(*http.Transport); ok {
			tr.CloseIdleConnections()
		}
	})
	return server
}

func testConfig(t *testing.T, baseURL, chromePath string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.InstallDir = t.TempDir()
	cfg.ManifestPath = filepath.Join(t.TempDir(), "manifest.json")
	cfg.Chrome.Path = chromePath
	cfg.Resolver.BaseURL = baseURL
	cfg.Resolver.Platform = "linux64"
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	chromePath := fakeVersionScript(t, t.TempDir(), "google-chrome", "Google Chrome 120.0.6099.224")
	server := cftServer(t, "120.0.6099.109",
		"ChromeDriver 120.0.6099.109 (abc-refs/branch-heads/6099@{#1})")

	cfg := testConfig(t, server.URL, chromePath)
	p := New(cfg, zap.NewNop())

	res, err := p.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Installed {
		t.Error("expected a fresh install")
	}
	if res.Driver.Version.String() != "120.0.6099.109" {
		t.Errorf("driver version = %s", res.Driver.Version)
	}
	if !res.Chrome.Version.SameMajor(res.Driver.Version) {
		t.Error("majors must match after provisioning")
	}

	m, err := driver.LoadManifest(cfg.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := m.Latest()
	if !ok {
		t.Fatal("manifest has no entry after install")
	}
	if entry.DriverVersion != "120.0.6099.109" || entry.ChromeVersion != "120.0.6099.224" {
		t.Errorf("manifest entry = %+v", entry)
	}

	// Second run resolves the same version and skips the install.
	res2, err := p.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if res2.Installed {
		t.Error("second run should skip install")
	}

	m2, _ := driver.LoadManifest(cfg.ManifestPath)
	if len(m2.Entries) != 1 {
		t.Errorf("skip path must not append manifest entries, got %d", len(m2.Entries))
	}
}

func TestRun_ForceReinstalls(t *testing.T) {
	chromePath := fakeVersionScript(t, t.TempDir(), "google-chrome", "Google Chrome 120.0.6099.224")
	server := cftServer(t, "120.0.6099.109",
		"ChromeDriver 120.0.6099.109 (abc-refs/branch-heads/6099@{#1})")

	cfg := testConfig(t, server.URL, chromePath)
	p := New(cfg, zap.NewNop())

	if _, err := p.Run(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Installed {
		t.Error("force run must reinstall")
	}
}

func TestRun_IncompatibleDriverRejected(t *testing.T) {
	chromePath := fakeVersionScript(t, t.TempDir(), "google-chrome", "Google Chrome 120.0.6099.224")
	// Endpoint claims 120 but the archive's binary reports 119.
	server := cftServer(t, "120.0.6099.109",
		"ChromeDriver 119.0.6045.105 (abc-refs/branch-heads/6045@{#1})")

	cfg := testConfig(t, server.URL, chromePath)
	p := New(cfg, zap.NewNop())

	_, err := p.Run(context.Background(), false)
	if !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}

	m, _ := driver.LoadManifest(cfg.ManifestPath)
	if len(m.Entries) != 0 {
		t.Error("failed install must not be recorded")
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	chromePath := fakeVersionScript(t, dir, "google-chrome", "Google Chrome 120.0.6099.224")
	driverPath := fakeVersionScript(t, dir, "chromedriver",
		"ChromeDriver 120.0.6099.109 (abc-refs/branch-heads/6099@{#1})")

	cfg := config.DefaultConfig()
	cfg.Chrome.Path = chromePath
	cfg.Chrome.DriverPath = driverPath

	p := New(cfg, zap.NewNop())
	res, err := p.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Compatible {
		t.Error("expected compatible pair")
	}
}

func TestVerify_Mismatch(t *testing.T) {
	dir := t.TempDir()
	chromePath := fakeVersionScript(t, dir, "google-chrome", "Google Chrome 121.0.6167.85")
	driverPath := fakeVersionScript(t, dir, "chromedriver",
		"ChromeDriver 120.0.6099.109 (abc-refs/branch-heads/6099@{#1})")

	cfg := config.DefaultConfig()
	cfg.Chrome.Path = chromePath
	cfg.Chrome.DriverPath = driverPath

	p := New(cfg, zap.NewNop())
	res, err := p.Verify(context.Background())
	if !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
	if res == nil || res.Compatible {
		t.Error("mismatch must report an incompatible result")
	}
}

func TestPlatform_Override(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resolver.Platform = "mac-arm64"
	p := New(cfg, nil)

	plat, err := p.Platform()
	if err != nil {
		t.Fatal(err)
	}
	if string(plat) != "mac-arm64" {
		t.Errorf("platform = %s", plat)
	}

	cfg.Resolver.Platform = "amiga"
	if _, err := p.Platform(); err == nil {
		t.Error("expected error for unknown platform")
	}
}
