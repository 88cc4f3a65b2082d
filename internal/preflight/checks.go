package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"oakpipe/internal/device"
	"oakpipe/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableDirectory accepts an existing writable directory, or a missing
// one whose nearest existing ancestor is writable so it can be created.
func CheckWritableDirectory(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	ancestor, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minMB free.
func CheckFreeSpace(name, path string, minMB int) Result {
	if minMB <= 0 {
		return Result{Name: name, Passed: true, Optional: true, Detail: "no minimum configured"}
	}
	target, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	freeMB, err := freeMegabytes(target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", target, err)}
	}
	if freeMB < uint64(minMB) {
		return Result{Name: name, Detail: fmt.Sprintf("%d MB free on %s, need %d MB", freeMB, target, minMB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MB free on %s", freeMB, target)}
}

func freeMegabytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize) / (1 << 20), nil
}

// CheckDeviceNode verifies a device node or serial port exists and can be
// opened for reading and writing.
func CheckDeviceNode(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found, is the device connected?)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; is the user in the video/dialout group?)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (present)", path)}
}

// CheckClaim verifies no other process holds the device claim. The claim is
// released again before returning.
func CheckClaim(_ context.Context, name, lockDir, dev string) Result {
	if strings.TrimSpace(dev) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	claim, err := device.Acquire(lockDir, dev)
	if err != nil {
		if errors.Is(err, services.ErrDeviceUnavailable) {
			return Result{Name: name, Detail: fmt.Sprintf("%s is in use by another oakpipe process", dev)}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	_ = claim.Release()
	return Result{Name: name, Passed: true, Detail: "free"}
}

// CheckFile verifies a regular, non-empty, readable file.
func CheckFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

// CheckDisplay warns when no graphical session is available for the live view.
func CheckDisplay() Result {
	const name = "Display"
	for _, key := range []string{"DISPLAY", "WAYLAND_DISPLAY"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s=%s", key, value)}
		}
	}
	return Result{Name: name, Optional: true, Detail: "no DISPLAY or WAYLAND_DISPLAY; live view will be skipped"}
}

func existingAncestor(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", current)
			}
			return current, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}
