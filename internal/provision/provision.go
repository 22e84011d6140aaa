// Package provision orchestrates the full provisioning flow: detect the
// installed Chrome, resolve the matching ChromeDriver release, install
// it, and verify major-version compatibility.
package provision

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chromeprov/internal/cft"
	"chromeprov/internal/chrome"
	"chromeprov/internal/config"
	"chromeprov/internal/driver"
)

// ErrIncompatible is returned when Chrome and the installed driver
// disagree on the major version.
var ErrIncompatible = errors.New("chrome and chromedriver majors differ")

// Provisioner wires detection, resolution, and installation together.
type Provisioner struct {
	cfg       *config.Config
	detector  *chrome.Detector
	resolver  *cft.Client
	installer *driver.Installer
	logger    *zap.Logger
}

// New builds a Provisioner from config.
func New(cfg *config.Config, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}

	resolverOpts := []cft.Option{
		cft.WithTimeout(cfg.HTTPTimeout()),
		cft.WithMaxRetries(cfg.Resolver.MaxRetries),
	}
	if cfg.Resolver.BaseURL != "" {
		resolverOpts = append(resolverOpts, cft.WithBaseURL(cfg.Resolver.BaseURL))
	}

	return &Provisioner{
		cfg:      cfg,
		detector: chrome.New(cfg.Chrome.Path, cfg.Chrome.DriverPath),
		resolver: cft.NewClient(resolverOpts...),
		installer: driver.NewInstaller(cfg.InstallDir,
			driver.WithDownloadRetries(cfg.Resolver.MaxRetries),
			driver.WithLogger(logger),
		),
		logger: logger,
	}
}

// Result describes a provisioning run.
type Result struct {
	Chrome  chrome.Binary
	Driver  chrome.Binary
	Release cft.Release
	// Installed is false when an up-to-date driver was already present.
	Installed bool
}

// Platform returns the effective download platform.
func (p *Provisioner) Platform() (cft.Platform, error) {
	if p.cfg.Resolver.Platform != "" {
		plat := cft.Platform(p.cfg.Resolver.Platform)
		if !plat.Valid() {
			return "", fmt.Errorf("unknown platform %q", p.cfg.Resolver.Platform)
		}
		return plat, nil
	}
	return cft.PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// Resolve finds the driver release matching the installed Chrome (or an
// explicit major when major > 0) without installing anything.
func (p *Provisioner) Resolve(ctx context.Context, major int) (cft.Release, error) {
	platform, err := p.Platform()
	if err != nil {
		return cft.Release{}, err
	}

	if major == 0 {
		bin, err := p.detector.DetectBrowser(ctx)
		if err != nil {
			return cft.Release{}, err
		}
		major = bin.Version.Major
		p.logger.Info("detected chrome",
			zap.String("path", bin.Path),
			zap.String("version", bin.Version.String()))
	}
	return p.resolver.Resolve(ctx, major, platform)
}

// Run executes the full flow. When force is false and the manifest
// already records the resolved version at the install path, the install
// step is skipped.
func (p *Provisioner) Run(ctx context.Context, force bool) (*Result, error) {
	platform, err := p.Platform()
	if err != nil {
		return nil, err
	}

	// Chrome detection and the feed fetch are independent; overlap them.
	var (
		browser chrome.Binary
		feed    *cft.Feed
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		browser, err = p.detector.DetectBrowser(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		feed, err = p.resolver.FetchFeed(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("detected chrome",
		zap.String("path", browser.Path),
		zap.String("version", browser.Version.String()))

	latest, err := p.resolver.LatestForMajor(ctx, browser.Version.Major)
	if err != nil {
		return nil, err
	}
	release, err := feed.Download(latest, platform)
	if err != nil {
		return nil, err
	}
	p.logger.Info("resolved chromedriver release",
		zap.String("version", release.Version.String()),
		zap.String("platform", string(release.Platform)))

	result := &Result{Chrome: browser, Release: release}

	manifest, err := driver.LoadManifest(p.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	if !force && p.upToDate(ctx, manifest, release) {
		p.logger.Info("driver already current, skipping install",
			zap.String("version", release.Version.String()))
		result.Driver, err = p.detector.ProbePath(ctx, p.installer.BinaryPath())
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	installedPath, err := p.installer.Install(ctx, release.URL)
	if err != nil {
		return nil, err
	}
	result.Installed = true

	// Probe what we just installed rather than trusting the archive.
	result.Driver, err = p.detector.ProbePath(ctx, installedPath)
	if err != nil {
		return nil, fmt.Errorf("installed driver failed probe: %w", err)
	}
	if !result.Driver.Version.SameMajor(browser.Version) {
		return nil, fmt.Errorf("installed driver %s against chrome %s: %w",
			result.Driver.Version, browser.Version, ErrIncompatible)
	}

	manifest.Record(driver.Entry{
		ChromeVersion: browser.Version.String(),
		DriverVersion: result.Driver.Version.String(),
		Platform:      string(release.Platform),
		SourceURL:     release.URL,
		Path:          installedPath,
	})
	if err := manifest.Save(); err != nil {
		return nil, err
	}
	return result, nil
}

// upToDate reports whether the manifest's latest entry matches the
// resolved release and the binary it points at still runs that version.
func (p *Provisioner) upToDate(ctx context.Context, m *driver.Manifest, release cft.Release) bool {
	latest, ok := m.Latest()
	if !ok || latest.DriverVersion != release.Version.String() {
		return false
	}
	bin, err := p.detector.ProbePath(ctx, p.installer.BinaryPath())
	if err != nil {
		return false
	}
	return bin.Version == release.Version
}

// VerifyResult reports a compatibility check.
type VerifyResult struct {
	Chrome     chrome.Binary
	Driver     chrome.Binary
	Compatible bool
}

// Verify probes both binaries concurrently and checks that their majors
// agree.
func (p *Provisioner) Verify(ctx context.Context) (*VerifyResult, error) {
	var browser, drv chrome.Binary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		browser, err = p.detector.DetectBrowser(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		drv, err = p.detector.DetectDriver(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &VerifyResult{
		Chrome:     browser,
		Driver:     drv,
		Compatible: browser.Version.SameMajor(drv.Version),
	}
	if !res.Compatible {
		return res, fmt.Errorf("chrome %s vs chromedriver %s: %w",
			browser.Version, drv.Version, ErrIncompatible)
	}
	return res, nil
}
