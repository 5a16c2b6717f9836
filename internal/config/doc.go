// Package config defines the release index settings used by ghidra-grabber and
// provides helpers to load, validate and save them in YAML format.
//
// The settings file is optional: when the default file is absent the built-in
// defaults point at the public NationalSecurityAgency/ghidra releases.
package config
