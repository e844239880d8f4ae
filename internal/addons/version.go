package addons

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeVersion strips every leading 'v' or 'V' from a release tag.
func NormalizeVersion(version string) string {
	return strings.TrimLeft(strings.TrimSpace(version), "vV")
}

// CompareVersions compares two version strings.
// Returns:
// - -1 if v1 < v2
// - 0 if v1 == v2
// - 1 if v1 > v2
// - error if either version cannot be ordered
//
// Purely dotted-numeric versions are compared segment by segment, and a
// version with extra segments sorts after its prefix ("6.9.1" > "6.9" and
// "6.9.0" > "6.9"). Anything else goes through semantic version parsing.
func CompareVersions(v1, v2 string) (int, error) {
	v1 = NormalizeVersion(v1)
	v2 = NormalizeVersion(v2)

	s1, ok1 := numericSegments(v1)
	s2, ok2 := numericSegments(v2)
	if ok1 && ok2 {
		return compareSegments(s1, s2), nil
	}

	version1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version %s: %w", v1, err)
	}

	version2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version %s: %w", v2, err)
	}

	return version1.Compare(version2), nil
}

// IsNewerVersion checks if v2 is newer than v1.
// Returns true if v2 > v1, false otherwise.
func IsNewerVersion(v1, v2 string) (bool, error) {
	comparison, err := CompareVersions(v1, v2)
	if err != nil {
		return false, err
	}
	return comparison < 0, nil
}

// NormalizeTested adjusts a readme's "Tested up to" value against the
// running host version. When the host is newer but shares major.minor with
// the declared value, the host version is returned so patch releases do not
// read as untested.
func NormalizeTested(tested, hostVersion string) string {
	if tested == "" || hostVersion == "" {
		return tested
	}

	cmp, err := CompareVersions(hostVersion, tested)
	if err != nil || cmp <= 0 {
		return tested
	}

	if majorMinor(tested) == majorMinor(hostVersion) {
		return hostVersion
	}
	return tested
}

func majorMinor(version string) string {
	parts := strings.Split(version, ".")
	major, minor := "0", "0"
	if len(parts) > 0 && parts[0] != "" {
		major = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		minor = parts[1]
	}
	return major + "." + minor
}

func numericSegments(version string) ([]int, bool) {
	if version == "" {
		return nil, false
	}
	parts := strings.Split(version, ".")
	segments := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		segments = append(segments, n)
	}
	return segments, true
}

func compareSegments(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
