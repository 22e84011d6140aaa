package cft

import "fmt"

// Platform is a Chrome-for-Testing download platform key.
type Platform string

// Platform keys as they appear in the known-good-versions feed.
const (
	Linux64  Platform = "linux64"
	MacArm64 Platform = "mac-arm64"
	MacX64   Platform = "mac-x64"
	Win32    Platform = "win32"
	Win64    Platform = "win64"
)

// PlatformFor maps a GOOS/GOARCH pair onto a feed platform key.
func PlatformFor(goos, goarch string) (Platform, error) {
	switch goos {
	case "linux":
		if goarch == "amd64" {
			return Linux64, nil
		}
	case "darwin":
		switch goarch {
		case "arm64":
			return MacArm64, nil
		case "amd64":
			return MacX64, nil
		}
	case "windows":
		switch goarch {
		case "amd64":
			return Win64, nil
		case "386":
			return Win32, nil
		}
	}
	return "", fmt.Errorf("no chrome-for-testing platform for %s/%s", goos, goarch)
}

// Valid reports whether p is a known feed platform key.
func (p Platform) Valid() bool {
	switch p {
	case Linux64, MacArm64, MacX64, Win32, Win64:
		return true
	}
	return false
}

// knownGoodFeed mirrors known-good-versions-with-downloads.json.
type knownGoodFeed struct {
	Timestamp string           `json:"timestamp"`
	Versions  []knownGoodEntry `json:"versions"`
}

type knownGoodEntry struct {
	Version   string        `json:"version"`
	Revision  string        `json:"revision"`
	Downloads feedDownloads `json:"downloads"`
}

type feedDownloads struct {
	Chrome       []feedDownload `json:"chrome"`
	Chromedriver []feedDownload `json:"chromedriver"`
}

type feedDownload struct {
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
}
