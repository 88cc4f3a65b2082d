package device

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"oakpipe/internal/logging"
	"oakpipe/internal/services"
)

func TestAcquireIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, "/dev/video0")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := Acquire(dir, "/dev/video0"); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("second Acquire = %v, want device unavailable", err)
	}
	other, err := Acquire(dir, "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("Acquire other device: %v", err)
	}
	defer other.Release()

	for range 2 {
		if err := first.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	again, err := Acquire(dir, "/dev/video0")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again.Release()

	var nilClaim *Claim
	if err := nilClaim.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestLockPathAndNodePath(t *testing.T) {
	if got := LockPath("/run/x", "/dev/video0"); got != filepath.Join("/run/x", "oakpipe-dev-video0.lock") {
		t.Fatalf("LockPath = %q", got)
	}
	if got := LockPath("/run/x", ""); got != filepath.Join("/run/x", "oakpipe-default.lock") {
		t.Fatalf("LockPath empty = %q", got)
	}
	if NodePath("2") != "/dev/video2" || NodePath("/dev/video1") != "/dev/video1" {
		t.Fatal("NodePath mapping")
	}
}

func TestMonitorFiresOnceForMatchingRemoval(t *testing.T) {
	var fired []string
	m := NewMonitor(logging.NewNop(), "/dev/video0", func(node string) { fired = append(fired, node) })

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/video0"}})
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video1"}})
	if len(fired) != 0 {
		t.Fatalf("fired for unrelated events: %v", fired)
	}
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video0"}})
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/usb1/video4linux/video0"}})
	if len(fired) != 1 || fired[0] != "/dev/video0" {
		t.Fatalf("fired = %v, want exactly one removal", fired)
	}
}

func TestMonitorNilAndEmptyAreNoops(t *testing.T) {
	var m *Monitor
	if err := m.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	empty := NewMonitor(logging.NewNop(), "", nil)
	if err := empty.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	empty.Stop()
}
