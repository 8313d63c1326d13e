package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

const googleVisionAPIURL = "https://vision.googleapis.com/v1/images:annotate"

// GoogleVisionClient implements FaceDetector and TextRecognizer on the
// images:annotate endpoint.
type GoogleVisionClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleVisionClient(apiKey string) *GoogleVisionClient {
	return &GoogleVisionClient{
		apiKey:   apiKey,
		endpoint: googleVisionAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func NewGoogleVisionClientFromConfig(config *Config) *GoogleVisionClient {
	client := NewGoogleVisionClient(config.GoogleVisionKey)
	if config.Endpoint != "" {
		client.endpoint = config.Endpoint
	}
	return client
}

type googleVisionRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent  `json:"image"`
	Features []featureType `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureType struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type googleVisionResponse struct {
	Responses []annotateResponse `json:"responses"`
	Error     *googleError       `json:"error"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type annotateResponse struct {
	TextAnnotations []textAnnotation `json:"textAnnotations"`
	FaceAnnotations []faceAnnotation `json:"faceAnnotations"`
	Error           *googleError     `json:"error"`
}

type textAnnotation struct {
	Description  string       `json:"description"`
	Locale       string       `json:"locale"`
	BoundingPoly boundingPoly `json:"boundingPoly"`
}

type faceAnnotation struct {
	BoundingPoly        boundingPoly `json:"boundingPoly"`
	DetectionConfidence float64      `json:"detectionConfidence"`
}

type boundingPoly struct {
	Vertices []vertex `json:"vertices"`
}

type vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// rect returns the axis-aligned bounds of the polygon.
func (p boundingPoly) rect() (image.Rectangle, bool) {
	if len(p.Vertices) == 0 {
		return image.Rectangle{}, false
	}
	minX, minY := p.Vertices[0].X, p.Vertices[0].Y
	maxX, maxY := minX, minY

	for _, v := range p.Vertices {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return image.Rect(minX, minY, maxX, maxY), true
}

func (c *GoogleVisionClient) DetectFaces(ctx context.Context, img image.Image, opts DetectOptions) ([]models.DetectedFaceBox, error) {
	response, err := c.annotate(ctx, img, featureType{Type: "FACE_DETECTION", MaxResults: opts.MaxResults})
	if err != nil {
		return nil, err
	}

	faces := make([]models.DetectedFaceBox, 0, len(response.FaceAnnotations))
	for _, face := range response.FaceAnnotations {
		if face.DetectionConfidence < opts.MinConfidence {
			continue
		}
		if len(face.BoundingPoly.Vertices) < 4 {
			continue
		}
		r, _ := face.BoundingPoly.rect()
		faces = append(faces, models.DetectedFaceBox{
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
			Confidence: face.DetectionConfidence,
		})
		if opts.MaxResults > 0 && len(faces) == opts.MaxResults {
			break
		}
	}

	return faces, nil
}

func (c *GoogleVisionClient) RecognizeText(ctx context.Context, img image.Image) (*TextResult, error) {
	response, err := c.annotate(ctx, img, featureType{Type: "TEXT_DETECTION"})
	if err != nil {
		return nil, err
	}

	result := &TextResult{
		Tokens: make([]models.NameToken, 0, len(response.TextAnnotations)),
	}

	// The first annotation holds the whole text block, the rest are single words.
	for i, text := range response.TextAnnotations {
		if i == 0 {
			result.FullText = text.Description
			if len(response.TextAnnotations) > 1 {
				continue
			}
		}
		word := strings.TrimSpace(text.Description)
		if word == "" {
			continue
		}
		r, ok := text.BoundingPoly.rect()
		if !ok {
			continue
		}
		result.Tokens = append(result.Tokens, models.NameToken{Text: word, Box: r})
	}

	return result, nil
}

func (c *GoogleVisionClient) annotate(ctx context.Context, img image.Image, feature featureType) (*annotateResponse, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	reqBody := googleVisionRequest{
		Requests: []imageRequest{
			{
				Image: imageContent{
					Content: base64.StdEncoding.EncodeToString(buf.Bytes()),
				},
				Features: []featureType{feature},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", c.endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var visionResp googleVisionResponse
	if err := json.Unmarshal(body, &visionResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if visionResp.Error != nil {
		return nil, fmt.Errorf("Google Vision API error: %s", visionResp.Error.Message)
	}

	if len(visionResp.Responses) == 0 {
		return nil, fmt.Errorf("no response from Google Vision API")
	}

	response := visionResp.Responses[0]
	if response.Error != nil {
		return nil, fmt.Errorf("Google Vision API error: %s", response.Error.Message)
	}

	return &response, nil
}
