package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kdimtricp/shottime/internal/ai"
	"github.com/kdimtricp/shottime/internal/models"
)

// DelayBeforeGrab lets the capture source settle before the frame is taken.
const DelayBeforeGrab = time.Second

type Config struct {
	Capturer DisplayCapturer
	Saver    *Saver
	Namer    *Namer
	Tones    ToneEmitter
	Analyzer Analyzer
	Recorder CaptureRecorder
	Settings func() models.Settings
	Now      func() time.Time
	// OnAnalysis receives every finished report.
	OnAnalysis func(*models.AnalysisReport)
}

// Pipeline takes one frame per request, saves it and hands it to analysis.
// Only one capture and one analysis can be in flight.
type Pipeline struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error

	capturing atomic.Bool
	analyzing atomic.Bool
	analyses  sync.WaitGroup

	mu          sync.RWMutex
	lastFrame   image.Image
	lastCapture *models.Capture
	lastReport  *models.AnalysisReport
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Settings == nil {
		cfg.Settings = models.DefaultSettings
	}
	if cfg.Namer == nil {
		cfg.Namer = NewNamer(&MemoryCounters{})
	}
	return &Pipeline{cfg: cfg, sleep: sleepContext}
}

func (p *Pipeline) Capturing() bool { return p.capturing.Load() }
func (p *Pipeline) Analyzing() bool { return p.analyzing.Load() }

// Capture acquires a frame, persists it and starts analysis when enabled.
func (p *Pipeline) Capture(ctx context.Context) (*models.Capture, error) {
	if p.analyzing.Load() {
		return nil, ErrBusy
	}
	if !p.capturing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer p.capturing.Store(false)

	settings := p.cfg.Settings()

	img, err := p.acquire(ctx, settings)
	if err != nil {
		if errors.Is(err, ErrCaptureCancelled) {
			log.Printf("[CAPTURE] Capture cancelled")
		} else {
			log.Printf("[CAPTURE] Capture failed: %v", err)
		}
		return nil, err
	}

	capture, err := p.persist(ctx, img, settings)
	if err != nil {
		log.Printf("[CAPTURE] Capture failed: %v", err)
		return nil, err
	}

	if settings.FaceDetection && p.cfg.Analyzer != nil {
		p.startAnalysis(capture.ID, img, settings)
	}
	return capture, nil
}

// Retake runs a full new acquisition and replaces the retained frame.
func (p *Pipeline) Retake(ctx context.Context) (*models.Capture, error) {
	log.Printf("[CAPTURE] Retake requested")
	return p.Capture(ctx)
}

func (p *Pipeline) acquire(ctx context.Context, settings models.Settings) (image.Image, error) {
	if p.cfg.Capturer == nil {
		return nil, errors.New("no display capturer configured")
	}

	stream, err := p.cfg.Capturer.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrCaptureCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}
	defer stream.Stop()

	if settings.CaptureDelay {
		if err := p.sleep(ctx, DelayBeforeGrab); err != nil {
			return nil, ErrCaptureCancelled
		}
	}

	img, err := stream.Grab(ctx)
	if err != nil {
		if errors.Is(err, ErrCaptureCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to grab frame: %w", err)
	}
	return img, nil
}

func (p *Pipeline) persist(ctx context.Context, img image.Image, settings models.Settings) (*models.Capture, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	capturedAt := p.cfg.Now()
	name := p.cfg.Namer.Next(capturedAt, settings)

	name, method, err := p.cfg.Saver.Save(ctx, name, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	bounds := img.Bounds()
	capture := models.NewCapture(name, method, bounds.Dx(), bounds.Dy(), int64(buf.Len()), capturedAt)
	log.Printf("[CAPTURE] Saved %s (%dx%d, %d bytes, %s)", name, capture.Width, capture.Height, capture.Size, method)

	if p.cfg.Recorder != nil {
		if err := p.cfg.Recorder.InsertCapture(capture); err != nil {
			log.Printf("[CAPTURE] Failed to record capture: %v", err)
		}
	}

	p.mu.Lock()
	p.lastFrame = img
	p.lastCapture = capture
	p.lastReport = nil
	p.mu.Unlock()

	if p.cfg.Tones != nil {
		p.cfg.Tones.PlayTone(ctx, models.ToneCamera)
	}
	return capture, nil
}

func (p *Pipeline) startAnalysis(captureID string, img image.Image, settings models.Settings) {
	p.analyzing.Store(true)
	p.analyses.Add(1)

	go func() {
		defer p.analyses.Done()
		defer p.analyzing.Store(false)

		report := p.cfg.Analyzer.Analyze(context.Background(), captureID, img, ai.Options{
			NameRecognition: settings.NameRecognition,
		})

		p.mu.Lock()
		if p.lastCapture != nil && p.lastCapture.ID == captureID {
			p.lastReport = report
		}
		p.mu.Unlock()

		if p.cfg.OnAnalysis != nil {
			p.cfg.OnAnalysis(report)
		}
	}()
}

// Wait blocks until any running analysis has finished.
func (p *Pipeline) Wait() {
	p.analyses.Wait()
}

func (p *Pipeline) LastCapture() *models.Capture {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCapture
}

func (p *Pipeline) LastFrame() image.Image {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFrame
}

func (p *Pipeline) LastReport() *models.AnalysisReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
