// Package device guards exclusive access to capture hardware and watches for
// its removal.
//
// A Claim is an advisory flock on a per-device lock file so two pipeline
// processes never share a camera or serial port. The hotplug Monitor listens
// to udev netlink events and reports when the claimed device node
// disappears, which the camera adapter turns into a disconnect.
package device
