package api

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/shottime/internal/capture"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/screenshot"
)

const defaultCaptureListLimit = 20

func (app *App) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	app.runCapture(w, r, app.Service.Capture)
}

func (app *App) RetakeHandler(w http.ResponseWriter, r *http.Request) {
	app.runCapture(w, r, app.Service.Retake)
}

func (app *App) runCapture(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*models.Capture, error)) {
	c, err := fn(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, capture.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, capture.ErrCaptureCancelled):
			status = http.StatusBadRequest
		default:
			log.Printf("Capture failed: %v", err)
		}
		writeJSON(w, status, errorBody(screenshot.UserMessage(err)))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (app *App) ListCapturesHandler(w http.ResponseWriter, r *http.Request) {
	if app.Captures == nil {
		writeJSON(w, http.StatusOK, []models.Capture{})
		return
	}

	limit := defaultCaptureListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	captures, err := app.Captures.ListRecent(limit)
	if err != nil {
		log.Printf("Error listing captures: %v", err)
		http.Error(w, "Failed to list captures", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, captures)
}

func (app *App) ReportHandler(w http.ResponseWriter, r *http.Request) {
	report := app.Service.Pipeline().LastReport()
	if report == nil {
		http.Error(w, "No analysis yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// FrameHandler serves the frame from the last capture for the preview.
func (app *App) FrameHandler(w http.ResponseWriter, r *http.Request) {
	frame := app.Service.Pipeline().LastFrame()
	if frame == nil {
		http.Error(w, "No capture yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame); err != nil {
		log.Printf("Error encoding frame: %v", err)
	}
}

func (app *App) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, ok := app.Downloads.Get(name)
	if !ok {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Write(d.Data)
}
