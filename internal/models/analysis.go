package models

import (
	"image"
	"time"
)

type DetectedFaceBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

func (b DetectedFaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

type NameToken struct {
	Text string          `json:"text"`
	Box  image.Rectangle `json:"box"`
}

// FaceCountSkipped marks a frame whose analysis was skipped due to excluded content.
const FaceCountSkipped = -1

type FaceDetectionResult struct {
	FaceCount       int      `json:"face_count"`
	Warnings        []string `json:"warnings"`
	HasSmallFaces   bool     `json:"has_small_faces"`
	HasCroppedFaces bool     `json:"has_cropped_faces"`
}

type LabeledFace struct {
	Box  DetectedFaceBox `json:"box"`
	Name string          `json:"name"`
}

type AnalysisReport struct {
	ID         string              `json:"id"`
	CaptureID  string              `json:"capture_id"`
	Result     FaceDetectionResult `json:"result"`
	Faces      []LabeledFace       `json:"faces"`
	AnalyzedAt time.Time           `json:"analyzed_at"`
}
