package ai

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kdimtricp/shottime/internal/models"
)

// ExclusionKeywords mark operator or organizer screens that are not analyzed.
var ExclusionKeywords = []string{
	"운영진", "운영자", "관리자", "조교",
	"staff", "operator", "admin", "host",
}

const (
	// smallFaceDivisor: a face is small when area*smallFaceDivisor < frame area (0.5%).
	smallFaceDivisor = 200
	edgeMargin       = 0.05

	belowWeight     = 0.3
	elsewhereWeight = 2.0
	maxNameDistance = 3.0
)

const noFacesWarning = "No faces detected"

type Options struct {
	NameRecognition bool
}

// Analyzer runs exclusion screening, face detection, quality heuristics
// and name association over one frame. It keeps no state between frames.
type Analyzer struct {
	faces  FaceDetector
	text   TextRecognizer
	detect DetectOptions
	now    func() time.Time
}

func NewAnalyzer(faces FaceDetector, text TextRecognizer, detect DetectOptions) *Analyzer {
	return &Analyzer{
		faces:  faces,
		text:   text,
		detect: detect,
		now:    time.Now,
	}
}

// Analyze never fails: detector or recognizer errors become warnings.
func (a *Analyzer) Analyze(ctx context.Context, captureID string, img image.Image, opts Options) *models.AnalysisReport {
	report := &models.AnalysisReport{
		ID:        uuid.New().String(),
		CaptureID: captureID,
		Result:    models.FaceDetectionResult{Warnings: []string{}},
		Faces:     []models.LabeledFace{},
	}
	defer func() { report.AnalyzedAt = a.now() }()

	var tokens []models.NameToken
	if opts.NameRecognition {
		text, err := a.recognize(ctx, img)
		if err != nil {
			log.Printf("[ANALYSIS] Text recognition failed for %s: %v", captureID, err)
			report.Result.Warnings = append(report.Result.Warnings,
				"Name recognition failed; faces are reported without names")
		} else {
			if keyword := excludedKeyword(text); keyword != "" {
				log.Printf("[ANALYSIS] Capture %s skipped, found %q", captureID, keyword)
				report.Result.FaceCount = models.FaceCountSkipped
				report.Result.Warnings = []string{
					fmt.Sprintf("Operator screen detected (%q); face analysis skipped", keyword),
				}
				return report
			}
			tokens = text.Tokens
		}
	}

	boxes, err := a.detectFaces(ctx, img)
	if err != nil {
		log.Printf("[ANALYSIS] Face detection failed for %s: %v", captureID, err)
		report.Result.Warnings = append(report.Result.Warnings,
			"Face detection failed; the screenshot was saved without analysis")
		return report
	}

	report.Result.FaceCount = len(boxes)
	bounds := img.Bounds()
	for i, box := range boxes {
		n := i + 1
		if isSmallFace(box, bounds) {
			report.Result.HasSmallFaces = true
			report.Result.Warnings = append(report.Result.Warnings,
				fmt.Sprintf("Face %d is very small", n))
		}
		if isCroppedFace(box, bounds) {
			report.Result.HasCroppedFaces = true
			report.Result.Warnings = append(report.Result.Warnings,
				fmt.Sprintf("Face %d is at the edge of the frame and may be cut off", n))
		}

		name := nearestName(box, tokens)
		if name == "" {
			name = fmt.Sprintf("Face %d", n)
		}
		report.Faces = append(report.Faces, models.LabeledFace{Box: box, Name: name})
	}

	if len(boxes) == 0 {
		report.Result.Warnings = append([]string{noFacesWarning}, report.Result.Warnings...)
	}

	log.Printf("[ANALYSIS] Capture %s: %d faces, %d warnings", captureID, report.Result.FaceCount, len(report.Result.Warnings))
	return report
}

func (a *Analyzer) recognize(ctx context.Context, img image.Image) (text *TextResult, err error) {
	if a.text == nil {
		return nil, fmt.Errorf("no text recognizer configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text recognizer panicked: %v", r)
		}
	}()
	text, err = a.text.RecognizeText(ctx, img)
	if err == nil && text == nil {
		err = fmt.Errorf("text recognizer returned no result")
	}
	return text, err
}

func (a *Analyzer) detectFaces(ctx context.Context, img image.Image) (boxes []models.DetectedFaceBox, err error) {
	if a.faces == nil {
		return nil, fmt.Errorf("no face detector configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("face detector panicked: %v", r)
		}
	}()
	return a.faces.DetectFaces(ctx, img, a.detect)
}

// excludedKeyword matches Latin keywords as whole words and Hangul keywords
// anywhere, since Korean particles attach directly to the noun.
func excludedKeyword(text *TextResult) string {
	var sb strings.Builder
	sb.WriteString(text.FullText)
	for _, t := range text.Tokens {
		sb.WriteByte(' ')
		sb.WriteString(t.Text)
	}
	haystack := strings.ToLower(sb.String())

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(haystack, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	for _, keyword := range ExclusionKeywords {
		kw := strings.ToLower(keyword)
		if isASCII(kw) {
			if words[kw] {
				return keyword
			}
			continue
		}
		if strings.Contains(haystack, kw) {
			return keyword
		}
	}
	return ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isSmallFace(box models.DetectedFaceBox, frame image.Rectangle) bool {
	frameArea := frame.Dx() * frame.Dy()
	if frameArea == 0 {
		return false
	}
	return box.Width*box.Height*smallFaceDivisor < frameArea
}

func isCroppedFace(box models.DetectedFaceBox, frame image.Rectangle) bool {
	marginX := edgeMargin * float64(frame.Dx())
	marginY := edgeMargin * float64(frame.Dy())

	left := float64(box.X - frame.Min.X)
	top := float64(box.Y - frame.Min.Y)
	right := float64(frame.Max.X - (box.X + box.Width))
	bottom := float64(frame.Max.Y - (box.Y + box.Height))

	return left < marginX || right < marginX || top < marginY || bottom < marginY
}

// nearestName picks the token closest to the face, preferring tokens below it.
func nearestName(box models.DetectedFaceBox, tokens []models.NameToken) string {
	if len(tokens) == 0 {
		return ""
	}
	cx := float64(box.X) + float64(box.Width)/2
	cy := float64(box.Y) + float64(box.Height)/2
	limit := maxNameDistance * float64(max(box.Width, box.Height))

	best := ""
	bestDist := math.Inf(1)
	for _, token := range tokens {
		tx := float64(token.Box.Min.X+token.Box.Max.X) / 2
		ty := float64(token.Box.Min.Y+token.Box.Max.Y) / 2

		dist := math.Abs(tx - cx)
		if dy := ty - cy; dy > 0 {
			dist += belowWeight * dy
		} else {
			dist += elsewhereWeight * -dy
		}

		if dist > limit || dist >= bestDist {
			continue
		}
		best = token.Text
		bestDist = dist
	}
	return best
}
