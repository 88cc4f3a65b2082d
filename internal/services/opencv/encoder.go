package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
	"oakpipe/internal/recording"
)

// Encoder writes frames into a container through an OpenCV VideoWriter.
type Encoder struct {
	spec   recording.EncoderSpec
	writer *gocv.VideoWriter
}

var _ recording.Encoder = (*Encoder)(nil)

// NewEncoderFactory returns a recording.EncoderFactory backed by OpenCV.
func NewEncoderFactory() recording.EncoderFactory {
	return func(spec recording.EncoderSpec) (recording.Encoder, error) {
		return OpenEncoder(spec)
	}
}

// OpenEncoder creates the container described by spec.
func OpenEncoder(spec recording.EncoderSpec) (*Encoder, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return nil, fmt.Errorf("invalid video geometry %dx%d@%.2f", spec.Width, spec.Height, spec.FPS)
	}
	writer, err := gocv.VideoWriterFile(spec.Path, spec.Codec, spec.FPS, spec.Width, spec.Height, true)
	if err != nil {
		return nil, err
	}
	if !writer.IsOpened() {
		_ = writer.Close()
		return nil, fmt.Errorf("video writer for %s with codec %s did not open", spec.Path, spec.Codec)
	}
	return &Encoder{spec: spec, writer: writer}, nil
}

// Write appends frame, resizing it when the camera delivers a geometry other
// than the one the container was opened with.
func (e *Encoder) Write(frame capture.Frame) error {
	mat, err := toMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	if frame.Width != e.spec.Width || frame.Height != e.spec.Height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, image.Pt(e.spec.Width, e.spec.Height), 0, 0, gocv.InterpolationLinear)
		return e.writer.Write(resized)
	}
	return e.writer.Write(mat)
}

// Close finalizes the container.
func (e *Encoder) Close() error {
	return e.writer.Close()
}
