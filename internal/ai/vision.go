package ai

import (
	"context"
	"image"

	"github.com/kdimtricp/shottime/internal/models"
)

const (
	DefaultMinConfidence = 0.3
	DefaultMaxResults    = 100
)

type DetectOptions struct {
	MinConfidence float64
	MaxResults    int
}

func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		MinConfidence: DefaultMinConfidence,
		MaxResults:    DefaultMaxResults,
	}
}

// FaceDetector finds faces in a frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image, opts DetectOptions) ([]models.DetectedFaceBox, error)
}

type TextResult struct {
	FullText string             `json:"full_text"`
	Tokens   []models.NameToken `json:"tokens"`
}

// TextRecognizer extracts text and positioned tokens from a frame.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, img image.Image) (*TextResult, error)
}

type Config struct {
	GoogleVisionKey string
	Endpoint        string
	MinConfidence   float64
	MaxResults      int
}

func NewConfig() *Config {
	return &Config{
		Endpoint:      googleVisionAPIURL,
		MinConfidence: DefaultMinConfidence,
		MaxResults:    DefaultMaxResults,
	}
}

func (c *Config) DetectOptions() DetectOptions {
	opts := DefaultDetectOptions()
	if c.MinConfidence > 0 {
		opts.MinConfidence = c.MinConfidence
	}
	if c.MaxResults > 0 {
		opts.MaxResults = c.MaxResults
	}
	return opts
}
