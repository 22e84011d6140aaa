// Package chrome locates the locally installed Chrome and ChromeDriver
// binaries and probes them for their versions.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"chromeprov/internal/chromever"
)

// ErrBinaryNotFound is returned when no candidate binary exists.
var ErrBinaryNotFound = errors.New("binary not found")

// Env vars that override binary discovery.
const (
	EnvChrome = "CHROMEPROV_CHROME"
	EnvDriver = "CHROMEPROV_CHROMEDRIVER"
)

// Well-known install locations, checked before $PATH. The first two match
// the upstream container image layout.
var (
	chromeCandidates = []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	driverCandidates = []string{
		"/usr/bin/chromedriver",
		"/usr/local/bin/chromedriver",
	}
	chromeNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}
	driverNames = []string{"chromedriver"}
)

// Detector probes local binaries. The zero value is not usable; use New.
type Detector struct {
	// ChromePath and DriverPath, when set, bypass discovery.
	ChromePath string
	DriverPath string

	// ProbeTimeout bounds each --version invocation.
	ProbeTimeout time.Duration

	// runVersion is swappable for tests.
	runVersion func(ctx context.Context, bin string) (string, error)
}

// New returns a Detector with explicit paths (either may be empty).
func New(chromePath, driverPath string) *Detector {
	return &Detector{
		ChromePath:   chromePath,
		DriverPath:   driverPath,
		ProbeTimeout: 10 * time.Second,
		runVersion:   runVersionCmd,
	}
}

// Binary is a located binary together with its reported version.
type Binary struct {
	Path    string
	Version chromever.Version
	// Raw is the unparsed --version output, kept for diagnostics.
	Raw string
}

// DetectBrowser locates Chrome and returns its path and version.
func (d *Detector) DetectBrowser(ctx context.Context) (Binary, error) {
	path, err := locate(d.ChromePath, EnvChrome, chromeCandidates, chromeNames)
	if err != nil {
		return Binary{}, fmt.Errorf("chrome: %w", err)
	}
	return d.probe(ctx, path)
}

// DetectDriver locates ChromeDriver and returns its path and version.
func (d *Detector) DetectDriver(ctx context.Context) (Binary, error) {
	path, err := locate(d.DriverPath, EnvDriver, driverCandidates, driverNames)
	if err != nil {
		return Binary{}, fmt.Errorf("chromedriver: %w", err)
	}
	return d.probe(ctx, path)
}

// ProbePath probes an explicit binary path without discovery.
func (d *Detector) ProbePath(ctx context.Context, path string) (Binary, error) {
	if _, err := os.Stat(path); err != nil {
		return Binary{}, fmt.Errorf("%s: %w", path, ErrBinaryNotFound)
	}
	return d.probe(ctx, path)
}

func (d *Detector) probe(ctx context.Context, path string) (Binary, error) {
	timeout := d.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := d.runVersion
	if run == nil {
		run = runVersionCmd
	}
	out, err := run(ctx, path)
	if err != nil {
		return Binary{}, fmt.Errorf("probe %s: %w", path, err)
	}

	v, err := chromever.ParseLoose(out)
	if err != nil {
		return Binary{}, fmt.Errorf("probe %s: unparseable version output: %w", path, err)
	}
	return Binary{Path: path, Version: v, Raw: strings.TrimSpace(out)}, nil
}

// locate resolves a binary path: explicit > env override > well-known
// locations > $PATH.
func locate(explicit, envVar string, candidates, names []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%s: %w", explicit, ErrBinaryNotFound)
		}
		return explicit, nil
	}
	if fromEnv := os.Getenv(envVar); fromEnv != "" {
		if _, err := os.Stat(fromEnv); err != nil {
			return "", fmt.Errorf("%s (from %s): %w", fromEnv, envVar, ErrBinaryNotFound)
		}
		return fromEnv, nil
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	for _, name := range names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrBinaryNotFound
}

func runVersionCmd(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("exec --version: %w", err)
	}
	return string(out), nil
}
