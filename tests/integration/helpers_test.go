package integration

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kdimtricp/shottime/internal/api"
	"github.com/kdimtricp/shottime/internal/capture"
	"github.com/kdimtricp/shottime/internal/countdown"
	"github.com/kdimtricp/shottime/internal/database"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/schedule"
	"github.com/kdimtricp/shottime/internal/screenshot"
	"github.com/kdimtricp/shottime/internal/storage"
)

type TestServer struct {
	Server   *httptest.Server
	App      *api.App
	DB       *database.DB
	Store    *database.ConfigStore
	Captures *database.CaptureRepository
	TempDir  string
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type solidStream struct{}

func (solidStream) Grab(ctx context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	return img, nil
}

func (solidStream) Stop() {}

type solidCapturer struct{}

func (solidCapturer) Open(ctx context.Context) (capture.Stream, error) {
	return solidStream{}, nil
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()

	tempDir := t.TempDir()

	db, err := database.NewDB(database.Config{SQLitePath: filepath.Join(tempDir, "shottime.db")})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	store := database.NewConfigStore(database.NewKVStore(db))
	captures := database.NewCaptureRepository(db)
	hub := notify.NewHub()
	downloads := storage.NewDownloadQueue(10)

	settings := store.LoadSettings()
	settings.CaptureDelay = false

	slots, ok := store.LoadSlots()
	if !ok {
		slots = schedule.DefaultSlots()
	}

	svc := screenshot.NewService(screenshot.Config{
		Clock:     fixedClock{now: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
		Schedule:  schedule.NewEngine(slots),
		Countdown: countdown.NewController(),
		Store:     store,
		Active:    store.LoadActive(),
		ResetDay:  store.LoadResetDay(),
		Settings:  settings,
		Capturer:  solidCapturer{},
		Saver:     capture.NewSaver(nil, screenshot.NewDownloader(downloads, hub)),
		Namer:     capture.NewNamer(store),
		Recorder:  captures,
		Directories: func(path string) (storage.DirectoryHandle, error) {
			dir, err := storage.NewLocalDirectory(path, storage.StaticPrompter(true))
			if err != nil {
				return nil, err
			}
			return dir, nil
		},
		Tones:    hub,
		Notifier: hub,
		Events:   hub,
	})

	app := &api.App{
		Service:   svc,
		Downloads: downloads,
		Hub:       hub,
		Captures:  captures,
	}

	server := httptest.NewServer(api.NewRouter(app))

	t.Cleanup(func() {
		server.Close()
		hub.Close()
		svc.Wait()
		db.Close()
	})

	return &TestServer{
		Server:   server,
		App:      app,
		DB:       db,
		Store:    store,
		Captures: captures,
		TempDir:  tempDir,
	}
}

func (ts *TestServer) request(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.Server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func slotByTime(slots []models.TimeSlot, clock string) (models.TimeSlot, bool) {
	for _, s := range slots {
		if s.Time == clock {
			return s, true
		}
	}
	return models.TimeSlot{}, false
}
