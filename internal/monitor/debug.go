package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"
)

// attachDebugRoutes mounts operator views under /debug/. tsweb limits them
// to loopback and tailnet callers.
func (ws *WebServer) attachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Controller state", func() any { return ws.viz.Snapshot().State })
	debug.KVFunc("Plot revision", func() any { return ws.viz.Snapshot().Revision })
	debug.KVFunc("Event subscribers", func() any { return ws.viz.Subscribers() })

	debug.HandleFunc("render-state", "current plot contents as JSON", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ws.viz.Snapshot()); err != nil {
			http.Error(w, "Failed to encode snapshot", http.StatusInternalServerError)
		}
	})

	// Server-sent events mirror of the websocket stream, for curl.
	debug.HandleSilentFunc("events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, events := ws.viz.Subscribe()
		defer ws.viz.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
