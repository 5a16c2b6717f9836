// Package logger wraps zap with the console format used by ghidra-grabber:
//   - a global sugared logger writing bracketed severity prefixes to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every step of a run takes a context and pulls its logger from there, so
// scoped fields follow the run from resolution down to the final copy.
package logger
