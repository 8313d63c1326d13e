package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	if app.Hub != nil {
		r.Handle("/ws", app.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", app.StateHandler)
		r.Get("/events", app.EventStreamHandler)

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", app.ListSlotsHandler)
			r.Post("/", app.CreateSlotHandler)
			r.Put("/", app.ImportSlotsHandler)
			r.Post("/reset-default", app.ResetDefaultHandler)
			r.Post("/reset-triggers", app.ResetTriggersHandler)
			r.Put("/{id}", app.UpdateSlotHandler)
			r.Delete("/{id}", app.DeleteSlotHandler)
			r.Post("/{id}/toggle", app.ToggleSlotHandler)
		})

		r.Post("/active", app.SetActiveHandler)
		r.Post("/countdown/test", app.TestCountdownHandler)
		r.Post("/countdown/reset", app.ResetCountdownHandler)

		r.Get("/settings", app.GetSettingsHandler)
		r.Put("/settings", app.UpdateSettingsHandler)

		r.Post("/capture", app.CaptureHandler)
		r.Post("/capture/retake", app.RetakeHandler)
		r.Get("/captures", app.ListCapturesHandler)
		r.Get("/report", app.ReportHandler)
		r.Get("/frame.png", app.FrameHandler)
		r.Get("/downloads/{name}", app.DownloadHandler)
	})

	return r
}
