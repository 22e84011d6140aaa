// Package chromever models the four-part version scheme shared by Chrome
// and ChromeDriver (MAJOR.MINOR.BUILD.PATCH, e.g. 120.0.6099.109).
package chromever

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CfTEpoch is the first Chrome milestone served by the Chrome-for-Testing
// endpoints. Drivers for older milestones lived on a retired download
// scheme and are not resolvable here.
const CfTEpoch = 115

// Version is a four-part Chrome/ChromeDriver version.
type Version struct {
	Major int
	Minor int
	Build int
	Patch int
}

var versionToken = regexp.MustCompile(`\b(\d+)\.(\d+)\.(\d+)\.(\d+)\b`)

// Parse parses a strict four-part version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return Version{}, fmt.Errorf("invalid version %q: want MAJOR.MINOR.BUILD.PATCH", s)
	}

	var v Version
	fields := []*int{&v.Major, &v.Minor, &v.Build, &v.Patch}
	for i, p := range parts {
		if !allDigits(p) || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a plain non-negative integer", s, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a plain non-negative integer", s, p)
		}
		*fields[i] = n
	}
	return v, nil
}

// allDigits rejects anything strconv.Atoi would tolerate beyond plain
// digits, such as a sign prefix.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseLoose extracts the first four-part version token from free-form
// text, such as "Google Chrome 120.0.6099.109" or
// "ChromeDriver 120.0.6099.109 (abcdef-refs/branch-heads/...)".
func ParseLoose(s string) (Version, error) {
	m := versionToken.FindString(s)
	if m == "" {
		return Version{}, fmt.Errorf("no four-part version found in %q", strings.TrimSpace(s))
	}
	return Parse(m)
}

// String returns the dotted form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Patch)
}

// Compare returns -1, 0, or 1 comparing v against o component-wise.
func (v Version) Compare(o Version) int {
	pairs := [4][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Build, o.Build},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// SameMajor reports whether two versions share a milestone. Major-version
// agreement is the compatibility contract between Chrome and ChromeDriver.
func (v Version) SameMajor(o Version) bool {
	return v.Major == o.Major
}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return v == Version{}
}
