// Package workflow is the stream orchestration engine.
//
// A Manager runs one capture session through the states Idle, Initializing,
// Running, Draining and Stopped, with Erroring reachable when a required
// resource fails. While Running, a single goroutine pulls frames from the
// frame source and passes each one through the optional stages (inference
// under a per-call deadline, tracking, overlay) before handing it to the
// recorder and the live view. Gyroscope samples travel on their own
// goroutine straight into the recorder so neither cadence can stall the
// other. Optional stages are wired as no-op variants from the stage package,
// so the run loop never branches on feature flags.
//
// Errors local to an optional stage are logged and absorbed. Errors about
// the camera end the session: the manager drains what is queued, releases
// every resource in reverse acquisition order and returns the originating
// error so callers can map it to an exit code.
package workflow
