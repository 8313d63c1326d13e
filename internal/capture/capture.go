package capture

import (
	"context"
	"errors"
	"image"

	"github.com/kdimtricp/shottime/internal/ai"
	"github.com/kdimtricp/shottime/internal/models"
)

var (
	// ErrCaptureCancelled means the user dismissed the capture source.
	ErrCaptureCancelled = errors.New("capture cancelled")
	// ErrBusy is returned while a capture or analysis is still running.
	ErrBusy = errors.New("capture or analysis already in progress")
)

// DisplayCapturer opens a video-only stream of one display or window.
type DisplayCapturer interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until stopped. Stop must be safe to call more than once.
type Stream interface {
	Grab(ctx context.Context) (image.Image, error)
	Stop()
}

type ToneEmitter interface {
	PlayTone(ctx context.Context, tone models.Tone)
}

type Analyzer interface {
	Analyze(ctx context.Context, captureID string, img image.Image, opts ai.Options) *models.AnalysisReport
}

type CaptureRecorder interface {
	InsertCapture(capture *models.Capture) error
}
