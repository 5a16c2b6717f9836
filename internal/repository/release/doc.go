// Package release implements access to the hosted release index.
//
// GitHubIndex lists every release of a repository through the GitHub REST API
// and exposes them as typed descriptors ordered newest first.
package release
