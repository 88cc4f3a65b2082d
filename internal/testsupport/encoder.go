package testsupport

import (
	"errors"
	"os"
	"sync"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/recording"
)

// ErrDiskFull is what a MemoryEncoder returns once FailAfter frames were written.
var ErrDiskFull = errors.New("no space left on device")

// MemoryEncoder records the sequence numbers it was given. It creates the
// target file so path assertions work, but keeps frames in memory.
type MemoryEncoder struct {
	mu     sync.Mutex
	Spec   recording.EncoderSpec
	seqs   []uint64
	closes int

	// Delay is slept inside every Write to simulate slow storage.
	Delay time.Duration
	// FailAfter makes Write fail once this many frames were written. Zero disables.
	FailAfter int
	// Block, when non-nil, is waited on by every Write.
	Block chan struct{}
}

// Write implements recording.Encoder.
func (e *MemoryEncoder) Write(frame capture.Frame) error {
	if e.Block != nil {
		<-e.Block
	}
	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailAfter > 0 && len(e.seqs) >= e.FailAfter {
		return ErrDiskFull
	}
	e.seqs = append(e.seqs, frame.Seq)
	return nil
}

// Close implements recording.Encoder.
func (e *MemoryEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes++
	return nil
}

// Seqs returns the written sequence numbers in write order.
func (e *MemoryEncoder) Seqs() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.seqs...)
}

// Closes returns how many times Close reached the encoder.
func (e *MemoryEncoder) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// EncoderFactory returns a factory that hands out enc and touches the file.
func EncoderFactory(enc *MemoryEncoder) recording.EncoderFactory {
	return func(spec recording.EncoderSpec) (recording.Encoder, error) {
		if err := os.WriteFile(spec.Path, nil, 0o644); err != nil {
			return nil, err
		}
		enc.mu.Lock()
		enc.Spec = spec
		enc.mu.Unlock()
		return enc, nil
	}
}
