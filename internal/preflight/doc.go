// Package preflight checks that the host can run a session before any device
// is opened: writable output and state directories, free space for the
// recording, the camera and gyroscope nodes, the detector model and a display
// for the live view.
//
// These checks run in two contexts:
//   - The run command calls RunAll before building the pipeline and refuses
//     to start when a required check fails.
//   - The CLI "oakpipe preflight" command prints every result as a table.
//
// Each check is gated by its config toggle; disabled features are skipped.
// Optional checks only warn.
package preflight
