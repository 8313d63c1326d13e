package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/shottime/internal/database"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/schedule"
	"github.com/kdimtricp/shottime/internal/screenshot"
	"github.com/kdimtricp/shottime/internal/storage"
)

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type App struct {
	Service   *screenshot.Service
	Downloads *storage.DownloadQueue
	Hub       *notify.Hub
	Captures  *database.CaptureRepository
}

type slotRequest struct {
	Time    string `json:"time"`
	Enabled *bool  `json:"enabled"`
}

func (req slotRequest) enabled() bool {
	return req.Enabled == nil || *req.Enabled
}

func (app *App) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.State())
}

func (app *App) ListSlotsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.Slots())
}

func (app *App) CreateSlotHandler(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	slots, err := app.Service.AddSlot(req.Time, req.enabled())
	if err != nil {
		slotError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slots)
}

func (app *App) ImportSlotsHandler(w http.ResponseWriter, r *http.Request) {
	var slots []models.TimeSlot
	if err := json.NewDecoder(r.Body).Decode(&slots); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	next, err := app.Service.ReplaceSlots(slots)
	if err != nil {
		slotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (app *App) UpdateSlotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	slots, err := app.Service.UpdateSlot(id, req.Time, req.enabled())
	if err != nil {
		slotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (app *App) ToggleSlotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}

	slots, err := app.Service.ToggleSlot(id)
	if err != nil {
		slotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (app *App) DeleteSlotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}

	slots, err := app.Service.DeleteSlot(id)
	if err != nil {
		slotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (app *App) ResetDefaultHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.ResetToDefault())
}

func (app *App) ResetTriggersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.ResetTriggers())
}

func (app *App) SetActiveHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	app.Service.SetActive(req.Active)
	writeJSON(w, http.StatusOK, map[string]bool{"active": app.Service.Active()})
}

func (app *App) TestCountdownHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.TestCountdown())
}

func (app *App) ResetCountdownHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.CancelCountdown())
}

func (app *App) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Service.Settings())
}

// UpdateSettingsHandler merges the body into the current settings, so a
// client can send only the fields it changes.
func (app *App) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings := app.Service.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, app.Service.UpdateSettings(settings))
}

func slotID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid slot id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func slotError(w http.ResponseWriter, err error) {
	if errors.Is(err, schedule.ErrSlotNotFound) {
		http.Error(w, "Slot not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// errorBody is the JSON shape for failures the dashboard shows to the user.
func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
