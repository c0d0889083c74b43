package api

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/gridlink/internal/events"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams structural events as SSE. ?types=row.*,cells.linked
// narrows the stream; Last-Event-ID (or ?since=) replays buffered events
// after that id before going live.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	filter := events.ParseFilter(r.URL.Query().Get("types"))
	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	if lastID == 0 {
		lastID = parseLastEventID(r.URL.Query().Get("since"))
	}

	// Subscribe before replaying so nothing published in between is lost;
	// ids already replayed are skipped on the live side.
	ch, cancel := s.events.Subscribe(filter)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	send := func(ev events.Event) bool {
		if ev.ID <= lastID {
			return true
		}
		lastID = ev.ID
		if err := writeSSE(bw, ev); err != nil {
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, ev := range s.events.Since(lastID, filter) {
		if !send(ev) {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok || !send(ev) {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeSSE frames one event. Payloads are single-line JSON.
func writeSSE(w *bufio.Writer, ev events.Event) error {
	fmt.Fprintf(w, "id: %d\n", ev.ID)
	if ev.Type != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", ev.Data)
	return err
}
