// Package main hosts the oakpipe CLI entrypoint and command graph.
//
// The Cobra-based command tree starts capture sessions, checks the host
// before a session (devices, model files, disk space), scaffolds and
// validates configuration, and lists the session catalog. Errors reaching
// main are mapped to the documented process exit codes.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
