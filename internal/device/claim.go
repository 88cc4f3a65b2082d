package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"oakpipe/internal/services"
)

// Claim is an exclusive, process-wide hold on one device.
type Claim struct {
	device string
	path   string
	lock   *flock.Flock
	once   sync.Once
	err    error
}

// Acquire takes the lock for device under lockDir. It fails with
// services.ErrDeviceUnavailable when another process holds it.
func Acquire(lockDir, device string) (*Claim, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "device", "claim", "create lock directory", err)
	}
	path := LockPath(lockDir, device)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "device", "claim", fmt.Sprintf("lock %s", path), err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "device", "claim",
			fmt.Sprintf("%s is already in use by another process", device), nil)
	}
	return &Claim{device: device, path: path, lock: lock}, nil
}

// Path returns the lock file path.
func (c *Claim) Path() string { return c.path }

// Release drops the lock. Safe to call more than once and on a nil Claim.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		c.err = c.lock.Unlock()
	})
	return c.err
}

// LockPath names the lock file for device.
func LockPath(lockDir, device string) string {
	name := strings.Trim(strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-").Replace(device), "-")
	if name == "" {
		name = "default"
	}
	return filepath.Join(lockDir, "oakpipe-"+name+".lock")
}

// NodePath maps a camera index such as "0" to its V4L2 node. Paths are
// returned unchanged.
func NodePath(device string) string {
	device = strings.TrimSpace(device)
	if _, err := strconv.Atoi(device); err == nil {
		return "/dev/video" + device
	}
	return device
}
