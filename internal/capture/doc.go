// Package capture holds the values that flow through the pipeline: frames,
// detections, tracked detections and gyroscope samples, plus the session
// clock that gives frames and samples a shared time base.
//
// Values are immutable once produced. A stage that needs to change a frame
// (the overlay renderer) returns a new Frame instead of editing Pix.
package capture
