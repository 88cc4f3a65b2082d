package opencv

import (
	"context"
	"os"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// WindowTitle is the live view window name.
const WindowTitle = "OAK-D Feed"

// Window is the on-screen live view. Pressing q in the window asks the
// pipeline to stop. All calls must come from the goroutine that runs the
// frame loop.
type Window struct {
	title  string
	window *gocv.Window
}

var _ stage.Display = (*Window)(nil)

// NewWindow returns a live view that opens lazily.
func NewWindow(title string) *Window {
	if title == "" {
		title = WindowTitle
	}
	return &Window{title: title}
}

// Open fails when no display server is reachable so the caller can fall
// back to headless operation.
func (w *Window) Open(context.Context) error {
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return services.Wrap(services.ErrDeviceUnavailable, "live view", "open", "no display server (DISPLAY and WAYLAND_DISPLAY unset)", nil)
	}
	w.window = gocv.NewWindow(w.title)
	return nil
}

// Show displays frame and reports whether the operator pressed q.
func (w *Window) Show(frame capture.Frame) bool {
	if w.window == nil {
		return false
	}
	mat, err := toMat(frame)
	if err != nil {
		return false
	}
	defer mat.Close()
	w.window.IMShow(mat)
	key := w.window.WaitKey(1)
	return key == 'q' || key == 'Q'
}

// Close destroys the window. Safe to call more than once.
func (w *Window) Close() error {
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}
