// Package archive extracts release and extension archives in-process.
//
// Zip archives (the format Ghidra and its extensions ship in) and gzip-wrapped
// tarballs are recognised by their magic bytes. Unix permission bits and
// symlinks are preserved, and entries that would land outside the destination
// are rejected.
package archive
