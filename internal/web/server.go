// Package web provides an HTTP status server for the parking-sensor daemon:
// the status page, the full status document and a preview of the strip.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/status"
)

// StripJSON is the /strip.json document: the steady strip for the latest
// distance, one "#rrggbb" per LED.
type StripJSON struct {
	DistanceCM *int     `json:"distance_cm"`
	Zone       string   `json:"zone"`
	Active     int      `json:"active"`
	LEDs       []string `json:"leds"`
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", readOnly(s.handleIndex))
	mux.HandleFunc("/index.html", readOnly(s.handleIndex))
	mux.HandleFunc("/index.json", readOnly(s.handleJSON))
	mux.HandleFunc("/strip.json", readOnly(s.handleStrip))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD.
func readOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(snap))
}

// handleStrip serves the strip the driver sees, which a dashboard can draw
// without knowing the zone thresholds.
func (s *Server) handleStrip(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(formatStrip(s.tracker.Snapshot()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(b)
}

func formatStrip(snap status.Snapshot) StripJSON {
	sj := StripJSON{
		Zone: string(logic.Classify(snap.Distance)),
		LEDs: []string{},
	}
	if snap.Distance != logic.NoEcho {
		d := int(snap.Distance)
		sj.DistanceCM = &d
	}
	for _, c := range stripPreview(snap) {
		if c != ([3]uint8{}) {
			sj.Active++
		}
		sj.LEDs = append(sj.LEDs, hexColor(c))
	}
	return sj
}

func hexColor(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
