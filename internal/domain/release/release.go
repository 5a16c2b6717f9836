package release

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNoReleases is returned when the index lists nothing.
	ErrNoReleases = errors.New("no releases found")
	// ErrVersionNotFound is returned when no release name contains the requested version.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNoAssets is returned when a release has no downloadable asset.
	ErrNoAssets = errors.New("release has no assets")
)

// Release describes a single published release.
type Release struct {
	// Name is the display name, e.g. "Ghidra 11.0.1".
	Name string
	// TagName is the git tag the release was cut from.
	TagName string
	// CreatedAt is when the release was created; it defines the ordering.
	CreatedAt time.Time
	// AssetURLs lists the browser download URLs of the release assets.
	AssetURLs []string
}

// Version returns the version token of the display name: the second
// space-separated field ("Ghidra 9.1 BETA" gives "9.1").
func (r Release) Version() string {
	fields := strings.Split(r.Name, " ")
	if len(fields) > 1 && fields[1] != "" {
		return fields[1]
	}

	if r.TagName != "" {
		return r.TagName
	}

	return r.Name
}

// DownloadURL returns the first asset URL of the release.
func (r Release) DownloadURL() (string, error) {
	if len(r.AssetURLs) == 0 {
		return "", fmt.Errorf("%s: %w", r.Name, ErrNoAssets)
	}

	return r.AssetURLs[0], nil
}

// SortNewestFirst orders releases by creation time, most recent first.
// Releases created at the same instant keep their relative order.
func SortNewestFirst(releases []Release) {
	slices.SortStableFunc(releases, func(a, b Release) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Latest returns the release with the greatest creation time.
func Latest(releases []Release) (Release, error) {
	if len(releases) == 0 {
		return Release{}, ErrNoReleases
	}

	latest := releases[0]
	for _, r := range releases[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}

	return latest, nil
}

// Find returns the first release whose display name contains version.
// Callers pass releases ordered newest first, so the newest match wins.
func Find(releases []Release, version string) (Release, error) {
	for _, r := range releases {
		if strings.Contains(r.Name, version) {
			return r, nil
		}
	}

	return Release{}, fmt.Errorf("%q: %w", version, ErrVersionNotFound)
}

// Versions returns the version of every release in the given order.
func Versions(releases []Release) []string {
	versions := make([]string, 0, len(releases))
	for _, r := range releases {
		versions = append(versions, r.Version())
	}

	return versions
}
