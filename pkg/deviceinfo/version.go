package deviceinfo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Version is an OS release such as "14" or "13.0.1".
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the string representation of a Version.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion converts a release string into a Version. Android releases
// frequently omit the minor and patch components.
func ParseVersion(version string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version format: %s", version)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version component %q in %s", part, version)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare compares two versions and returns:
// -1 if v < other
// 0 if v == other
// 1 if v > other
func (v Version) Compare(other Version) int {
	a := [3]int{v.Major, v.Minor, v.Patch}
	b := [3]int{other.Major, other.Minor, other.Patch}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// AtLeast returns true if this version is greater than or equal to other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// ReleaseVersion parses the Android release of id. ok is false off Android,
// where the release names a host distribution, or if it is not numeric.
func (id Identity) ReleaseVersion() (v Version, ok bool) {
	if id.SDK == Unknown || id.SDK == "" {
		return Version{}, false
	}
	v, err := ParseVersion(id.Release)
	return v, err == nil
}

// ReleaseVersion returns the parsed Android release of the device.
func (p *Provider) ReleaseVersion(ctx context.Context) (Version, bool) {
	return p.Identity(ctx).ReleaseVersion()
}
