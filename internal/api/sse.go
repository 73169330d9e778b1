package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleJobEvents streams a job's event bus subscription as
// "data: <json>\n\n" frames: a synthetic {"type":"hello","job_id":...}
// frame first, then one frame per bus event until the client disconnects.
// Each caller gets its own fan-out subscription from eventbus.Bus, so
// concurrent SSE clients never starve each other.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondErr(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: {\"type\":\"hello\",\"job_id\":%q}\n\n", jobID)
	flusher.Flush()

	ch := s.bus.Subscribe(jobID)
	defer s.bus.Unsubscribe(jobID, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			frame, err := ev.SSEFormat()
			if err != nil {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
