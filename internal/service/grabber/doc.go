// Package grabber fetches a Ghidra release and installs it into a new directory.
//
// A run resolves its source (explicit URL, local archive or directory, or a
// release looked up in the index), stages it in a temporary directory,
// installs extension archives into the staged tree and finally copies the
// installation to the output path, which must not exist beforehand.
package grabber
