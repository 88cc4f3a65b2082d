package opencv

import (
	"log/slog"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
	"oakpipe/internal/overlay"
	"oakpipe/internal/stage"
)

// Renderer burns boxes and captions into a copy of the frame.
type Renderer struct {
	logger *slog.Logger
}

var _ stage.Renderer = (*Renderer)(nil)

// NewRenderer returns an overlay renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logging.NewComponentLogger(logger, "overlay")}
}

// Render never fails the frame: if drawing goes wrong the original frame is
// returned unannotated.
func (r *Renderer) Render(frame capture.Frame, detections []capture.TrackedDetection) capture.Frame {
	plan := overlay.Plan(frame.Width, frame.Height, detections)
	if len(plan) == 0 {
		return frame
	}
	mat, err := toMat(frame)
	if err != nil {
		r.logger.Debug("overlay skipped", logging.Uint64(logging.FieldFrameSeq, frame.Seq), logging.Error(err))
		return frame
	}
	defer mat.Close()

	for _, a := range plan {
		if err := gocv.Rectangle(&mat, a.Rect, a.Color, overlay.Thickness); err != nil {
			r.logger.Debug("draw box failed", logging.Uint64(logging.FieldFrameSeq, frame.Seq), logging.Error(err))
			return frame
		}
		if err := gocv.PutText(&mat, a.Label, a.Origin, gocv.FontHersheySimplex, overlay.FontScale, a.Color, 1); err != nil {
			r.logger.Debug("draw label failed", logging.Uint64(logging.FieldFrameSeq, frame.Seq), logging.Error(err))
			return frame
		}
	}
	return frame.WithPix(mat.ToBytes())
}
