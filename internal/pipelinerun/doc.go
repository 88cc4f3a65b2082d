// Package pipelinerun assembles one capture session from configuration.
//
// It runs preflight, opens the session catalog, builds the stage set for the
// configured target (hardware or synthetic), tees the process logger into a
// per-session log file and hands everything to the workflow manager. Signals
// are translated into stop requests: the first SIGINT or SIGTERM drains, the
// second forces.
package pipelinerun
