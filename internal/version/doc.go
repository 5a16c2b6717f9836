// Package version exposes build metadata of ghidra-grabber.
//
// Version, Commit and BuildTime are injected via -ldflags at build time. The
// same metadata identifies the tool to GitHub through the User-Agent header.
package version
