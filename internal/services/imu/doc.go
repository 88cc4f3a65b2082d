// Package imu reads gyroscope samples from a serial-attached inertial sensor.
//
// The device streams newline-terminated ASCII records of angular rate in
// rad/s, either "gx,gy,gz" or "G,gx,gy,gz". Each record is timestamped on
// arrival with the session clock shared with the camera, so frames and
// samples are directly comparable.
package imu
