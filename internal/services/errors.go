package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigInvalid         = errors.New("configuration invalid")
	ErrDeviceUnavailable     = errors.New("device unavailable")
	ErrTimeout               = errors.New("timeout")
	ErrDeviceDisconnected    = errors.New("device disconnected")
	ErrInference             = errors.New("inference error")
	ErrIO                    = errors.New("io error")
	ErrNonMonotonicTimestamp = errors.New("non-monotonic timestamp")
	ErrSinkClosed            = errors.New("sink closed")
	errUnclassified          = errors.New("pipeline failure")
)

// Process exit codes. A supervisor can retry on device codes and should not
// retry on configuration failures.
const (
	ExitOK                 = 0
	ExitUnexpected         = 1
	ExitConfigInvalid      = 2
	ExitDeviceUnavailable  = 3
	ExitDeviceDisconnected = 4
	ExitTimeout            = 5
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = errUnclassified
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an error returned by a pipeline run to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfigInvalid):
		return ExitConfigInvalid
	case errors.Is(err, ErrDeviceUnavailable):
		return ExitDeviceUnavailable
	case errors.Is(err, ErrDeviceDisconnected):
		return ExitDeviceDisconnected
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	default:
		return ExitUnexpected
	}
}

// Kind returns a short stable label for the error's marker, used as a log
// field and persisted in the session catalog.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrDeviceDisconnected):
		return "device_disconnected"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInference):
		return "inference_error"
	case errors.Is(err, ErrIO):
		return "io_error"
	case errors.Is(err, ErrNonMonotonicTimestamp):
		return "non_monotonic_timestamp"
	case errors.Is(err, ErrSinkClosed):
		return "sink_closed"
	default:
		return "unexpected"
	}
}

// Recoverable reports whether the pipeline keeps running after err. Faults
// local to an optional stage or a single sample are absorbed; anything about
// a required resource is not.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrInference), errors.Is(err, ErrIO), errors.Is(err, ErrNonMonotonicTimestamp):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
