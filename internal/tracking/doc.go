// Package tracking associates per-frame detections into tracks with stable
// identifiers.
//
// The Tracker matches each detection to the existing track of the same
// class whose last box overlaps it most, using an optimal one-to-one
// assignment over 1 - IoU. Pairs below the configured IoU threshold never
// match; those detections open new tracks. Tracks left unmatched for more
// than MaxMissed consecutive updates are retired. Identifiers increase
// monotonically for the life of the Tracker and are never reused.
package tracking
