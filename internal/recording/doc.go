// Package recording persists a session: frames into a video container and
// gyroscope samples into a JSON Lines log sharing the same base name.
//
// Each sink sits behind its own bounded drop-oldest queue and is written by a
// single goroutine, so capture never waits on the disk. When a queue is full
// the oldest not-yet-written item is discarded and a drop counter grows. A
// sink that hits an I/O error is marked failed and receives no further
// writes; the other sink and the camera keep running.
package recording
