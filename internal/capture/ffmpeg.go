package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// FFmpegCapturer grabs single frames of the screen through ffmpeg's
// platform grabber (x11grab, avfoundation or gdigrab).
type FFmpegCapturer struct {
	ffmpegPath string
	format     string
	input      string
}

func NewFFmpegCapturer(format, input string) (*FFmpegCapturer, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	log.Printf("[CAPTURE] Found ffmpeg at: %s", ffmpegPath)

	if format == "" || input == "" {
		defFormat, defInput := DefaultScreenInput()
		if format == "" {
			format = defFormat
		}
		if input == "" {
			input = defInput
		}
	}

	return &FFmpegCapturer{
		ffmpegPath: ffmpegPath,
		format:     format,
		input:      input,
	}, nil
}

// DefaultScreenInput returns the grabber and input for the primary display.
func DefaultScreenInput() (format, input string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", "1:none"
	case "windows":
		return "gdigrab", "desktop"
	default:
		display := os.Getenv("DISPLAY")
		if display == "" {
			display = ":0.0"
		}
		return "x11grab", display
	}
}

func (c *FFmpegCapturer) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCaptureCancelled
	}
	return &ffmpegStream{capturer: c}, nil
}

func (c *FFmpegCapturer) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", c.format,
		"-i", c.input,
		"-an",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

type ffmpegStream struct {
	capturer *FFmpegCapturer

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
}

func (s *ffmpegStream) Grab(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errors.New("stream already stopped")
	}
	args := s.capturer.args()
	cmd := exec.CommandContext(ctx, s.capturer.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	s.cmd = cmd
	s.mu.Unlock()

	err := cmd.Run()

	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCaptureCancelled
		}
		log.Printf("[CAPTURE] FFmpeg stderr output: %s", stderr.String())
		return nil, fmt.Errorf("failed to grab frame: %w", err)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}
