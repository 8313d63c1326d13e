package ai

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVisionClient(t *testing.T, handler http.HandlerFunc) *GoogleVisionClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewConfig()
	config.GoogleVisionKey = "test-key"
	config.Endpoint = server.URL
	return NewGoogleVisionClientFromConfig(config)
}

func TestGoogleVisionDetectFaces(t *testing.T) {
	var got googleVisionRequest
	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in request")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Write([]byte(`{"responses":[{"faceAnnotations":[
			{"boundingPoly":{"vertices":[{"x":10,"y":20},{"x":110,"y":20},{"x":110,"y":140},{"x":10,"y":140}]},"detectionConfidence":0.92},
			{"boundingPoly":{"vertices":[{"x":300,"y":300},{"x":320,"y":300},{"x":320,"y":320},{"x":300,"y":320}]},"detectionConfidence":0.1}
		]}]}`))
	})

	faces, err := client.DetectFaces(context.Background(), frame(), DefaultDetectOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Requests) != 1 || got.Requests[0].Features[0].Type != "FACE_DETECTION" {
		t.Errorf("unexpected request features: %+v", got.Requests)
	}
	if got.Requests[0].Features[0].MaxResults != DefaultMaxResults {
		t.Errorf("expected maxResults %d, got %d", DefaultMaxResults, got.Requests[0].Features[0].MaxResults)
	}
	if len(faces) != 1 {
		t.Fatalf("expected low-confidence face to be dropped, got %d faces", len(faces))
	}
	f := faces[0]
	if f.X != 10 || f.Y != 20 || f.Width != 100 || f.Height != 120 {
		t.Errorf("unexpected face box: %+v", f)
	}
}

func TestGoogleVisionRecognizeText(t *testing.T) {
	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{"textAnnotations":[
			{"description":"Kim Lee","boundingPoly":{"vertices":[{"x":0,"y":0},{"x":200,"y":0},{"x":200,"y":20},{"x":0,"y":20}]}},
			{"description":"Kim","boundingPoly":{"vertices":[{"x":0,"y":0},{"x":80,"y":0},{"x":80,"y":20},{"x":0,"y":20}]}},
			{"description":"Lee","boundingPoly":{"vertices":[{"x":120,"y":0},{"x":200,"y":0},{"x":200,"y":20},{"x":120,"y":20}]}}
		]}]}`))
	})

	text, err := client.RecognizeText(context.Background(), frame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text.FullText != "Kim Lee" {
		t.Errorf("expected full text, got %q", text.FullText)
	}
	if len(text.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(text.Tokens))
	}
	if text.Tokens[1].Text != "Lee" || text.Tokens[1].Box != image.Rect(120, 0, 200, 20) {
		t.Errorf("unexpected token: %+v", text.Tokens[1])
	}
}

func TestGoogleVisionErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "top level error", body: `{"error":{"code":403,"message":"API key invalid"}}`},
		{name: "response error", body: `{"responses":[{"error":{"code":3,"message":"bad image"}}]}`},
		{name: "empty responses", body: `{"responses":[]}`},
		{name: "invalid json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			if _, err := client.RecognizeText(context.Background(), frame()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
