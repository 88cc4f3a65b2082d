// Package synthetic provides hardware-free frame and gyroscope sources.
//
// They stand in for the camera and IMU on machines without the device
// (pipeline.source = "synthetic") and give the orchestrator tests precise
// control over pacing, disconnects and timestamp faults.
package synthetic
