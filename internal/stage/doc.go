// Package stage declares the capabilities the pipeline orchestrator drives:
// frame source, sensor stream, detector, tracker, renderer, recorder and live
// view display.
//
// Every optional capability has a Disabled variant so the orchestrator's run
// loop never branches on feature toggles; configuration decides once, at
// wiring time, whether a stage is a real adapter or its no-op stand-in.
package stage
