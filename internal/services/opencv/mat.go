package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
)

// toMat copies a frame into a new 8UC3 Mat owned by the caller.
func toMat(frame capture.Frame) (gocv.Mat, error) {
	if !frame.Valid() {
		return gocv.NewMat(), fmt.Errorf("%s: pixel buffer does not match geometry", frame)
	}
	view, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%s: %w", frame, err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// toBGR converts a captured Mat into packed BGR24 bytes.
func toBGR(mat gocv.Mat) ([]byte, error) {
	switch mat.Channels() {
	case 3:
		return mat.ToBytes(), nil
	case 1, 4:
		code := gocv.ColorGrayToBGR
		if mat.Channels() == 4 {
			code = gocv.ColorBGRAToBGR
		}
		bgr := gocv.NewMat()
		defer bgr.Close()
		if err := gocv.CvtColor(mat, &bgr, code); err != nil {
			return nil, err
		}
		return bgr.ToBytes(), nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", mat.Channels())
	}
}
