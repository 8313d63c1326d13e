package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// EventStreamHandler relays hub events as server-sent events for clients
// that cannot hold a websocket.
func (app *App) EventStreamHandler(w http.ResponseWriter, r *http.Request) {
	if app.Hub == nil {
		http.Error(w, "Events unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := app.Hub.Subscribe()
	defer cancel()

	writeEvent := func(eventType string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Error marshaling event: %v", err)
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent("state", app.Service.State()) {
		return
	}

	clientGone := r.Context().Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !writeEvent(string(ev.Type), ev) {
				return
			}

		case <-clientGone:
			return
		}
	}
}
