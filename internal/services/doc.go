// Package services defines the error taxonomy and context helpers shared by
// the pipeline stages and their hardware adapters.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper, so a failure deep inside an
//     adapter can be classified with errors.Is at the orchestrator boundary.
//   - ExitCode, which turns the final error of a run into the process exit
//     status a supervisor uses to decide whether to restart.
//   - Context helpers that stamp session ids and stage names for logging.
//
// Concrete adapters live in subpackages (opencv, imu, synthetic).
package services
