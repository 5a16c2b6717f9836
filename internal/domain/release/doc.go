// Package release contains the release descriptor published by the release
// index and the selection rules applied to it.
//
// Releases are ordered newest first by creation time; "latest" is the head of
// that order and named versions are matched by substring of the display name.
package release
