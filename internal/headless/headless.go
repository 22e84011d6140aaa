// Package headless prepares the environment for display-less browser
// automation and can smoke-test a headless Chrome launch over CDP.
package headless

import (
	"context"
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultDisplay matches the virtual display the container image exports.
const DefaultDisplay = ":99"

// EnsureDisplay sets DISPLAY to the configured virtual display when the
// variable is unset, falling back to DefaultDisplay when display is
// empty. An existing value is never overridden. Returns the effective
// value.
func EnsureDisplay(display string) (string, error) {
	if current := os.Getenv("DISPLAY"); current != "" {
		return current, nil
	}
	if display == "" {
		display = DefaultDisplay
	}
	if err := os.Setenv("DISPLAY", display); err != nil {
		return "", fmt.Errorf("set DISPLAY: %w", err)
	}
	return display, nil
}

// SmokeResult is what a successful launch reported.
type SmokeResult struct {
	Product         string
	ProtocolVersion string
	UserAgent       string
}

// SmokeTest launches the given Chrome binary headless, connects over
// CDP, reads the browser version, and tears everything down. It proves
// the installed Chrome can actually serve automation sessions, which a
// --version probe alone does not.
func SmokeTest(ctx context.Context, chromePath string) (SmokeResult, error) {
	l := launcher.New().
		Bin(chromePath).
		Headless(true).
		NoSandbox(true) // container parity: image runs as root without a user namespace

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return SmokeResult{}, fmt.Errorf("launch chrome: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return SmokeResult{}, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	version, err := browser.Version()
	if err != nil {
		return SmokeResult{}, fmt.Errorf("read browser version: %w", err)
	}
	return SmokeResult{
		Product:         version.Product,
		ProtocolVersion: version.ProtocolVersion,
		UserAgent:       version.UserAgent,
	}, nil
}
