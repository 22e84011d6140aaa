// Package driver downloads and installs ChromeDriver binaries and keeps
// a manifest of what was installed.
package driver

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoDriverInArchive is returned when the downloaded zip contains no
// chromedriver binary.
var ErrNoDriverInArchive = fmt.Errorf("archive contains no chromedriver binary")

// Installer installs driver binaries into a target directory.
type Installer struct {
	installDir string
	binaryName string
	httpClient *http.Client
	logger     *zap.Logger

	maxRetries       int
	retryBackoffBase time.Duration
	retryBackoffMax  time.Duration
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithHTTPClient overrides the download client.
func WithHTTPClient(c *http.Client) InstallerOption {
	return func(i *Installer) { i.httpClient = c }
}

// WithLogger attaches a logger; the default is a nop logger.
func WithLogger(l *zap.Logger) InstallerOption {
	return func(i *Installer) { i.logger = l }
}

// WithDownloadRetries sets how many times a failed download is retried.
func WithDownloadRetries(n int) InstallerOption {
	return func(i *Installer) { i.maxRetries = n }
}

// NewInstaller returns an Installer targeting installDir.
func NewInstaller(installDir string, opts ...InstallerOption) *Installer {
	name := "chromedriver"
	if runtime.GOOS == "windows" {
		name = "chromedriver.exe"
	}
	i := &Installer{
		installDir:       installDir,
		binaryName:       name,
		httpClient:       &http.Client{Timeout: 5 * time.Minute},
		logger:           zap.NewNop(),
		maxRetries:       3,
		retryBackoffBase: time.Second,
		retryBackoffMax:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BinaryPath returns where the driver binary ends up.
func (i *Installer) BinaryPath() string {
	return filepath.Join(i.installDir, i.binaryName)
}

// Install downloads the driver archive from url, extracts the
// chromedriver binary, and moves it into place atomically. A failed
// download or extraction never disturbs an existing installed driver.
func (i *Installer) Install(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(i.installDir, 0o755); err != nil {
		return "", fmt.Errorf("create install dir: %w", err)
	}

	archivePath, err := i.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	// Stage the extracted binary next to its final path so the rename
	// stays on one filesystem.
	staged, err := i.extract(archivePath)
	if err != nil {
		return "", err
	}

	final := i.BinaryPath()
	if err := os.Rename(staged, final); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("install %s: %w", final, err)
	}
	i.logger.Info("chromedriver installed", zap.String("path", final), zap.String("source", url))
	return final, nil
}

// download fetches the archive to a temp file, retrying transient
// failures, and verifies the advertised content length when present.
func (i *Installer) download(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := i.retryBackoffBase << uint(attempt-1)
			if backoff > i.retryBackoffMax {
				backoff = i.retryBackoffMax
			}
			i.logger.Warn("retrying download", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		path, err := i.tryDownload(ctx, url)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("download %s: giving up after %d attempts: %w", url, i.maxRetries+1, lastErr)
}

func (i *Installer) tryDownload(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(i.installDir, ".chromedriver-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write archive: %w", err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("truncated download: got %d of %d bytes", n, resp.ContentLength)
	}
	return tmp.Name(), nil
}

// extract pulls the chromedriver entry out of the archive into a staged
// temp file and returns its path. Handles both the flat layout and the
// chromedriver-<platform>/ directory layout the feed ships.
func (i *Installer) extract(archivePath string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var entry *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Zip paths are forward-slash; refuse anything escaping the root.
		clean := path.Clean(f.Name)
		if strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
			return "", fmt.Errorf("archive entry %q escapes extraction root", f.Name)
		}
		if path.Base(clean) == i.binaryName {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", ErrNoDriverInArchive
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open archive entry: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(i.installDir, ".chromedriver-*.bin")
	if err != nil {
		return "", fmt.Errorf("create staged binary: %w", err)
	}

	_, err = io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod staged binary: %w", err)
	}
	return tmp.Name(), nil
}
