package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ragtools/ragproxy/internal/sysmon"
)

// heartbeatInterval controls how often an SSE comment is emitted to keep
// proxies from closing an otherwise idle stream.
const heartbeatInterval = 15 * time.Second

// handleMetricsStream streams periodic resource samples as server-sent
// events until the client goes away.
func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	monitor := sysmon.NewMonitor(s.probe)

	ticker := time.NewTicker(s.sampleInterval)
	defer ticker.Stop()

	lastHeartbeat := time.Now()
	for {
		sample := monitor.Sample(r.Context())
		payload, err := json.Marshal(sample)
		if err != nil {
			return
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}

		if time.Since(lastHeartbeat) > heartbeatInterval {
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			lastHeartbeat = time.Now()
		}

		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
