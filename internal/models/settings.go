package models

import (
	"time"

	"github.com/google/uuid"
)

type Settings struct {
	FaceDetection   bool   `json:"face_detection"`
	NameRecognition bool   `json:"name_recognition"`
	CaptureDelay    bool   `json:"capture_delay"`
	FilenamePrefix  string `json:"filename_prefix"`
	PrefixEnabled   bool   `json:"prefix_enabled"`
	SaveDirectory   string `json:"save_directory"`
}

func DefaultSettings() Settings {
	return Settings{
		FaceDetection: true,
		CaptureDelay:  true,
	}
}

type SaveMethod string

const (
	SavedToDirectory SaveMethod = "directory"
	SavedAsDownload  SaveMethod = "download"
)

// Capture describes one completed screen capture.
type Capture struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Method     SaveMethod `json:"method"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Size       int64      `json:"size"`
	CapturedAt time.Time  `json:"captured_at"`
}

func NewCapture(filename string, method SaveMethod, width, height int, size int64, capturedAt time.Time) *Capture {
	return &Capture{
		ID:         uuid.New().String(),
		Filename:   filename,
		Method:     method,
		Width:      width,
		Height:     height,
		Size:       size,
		CapturedAt: capturedAt,
	}
}
