// Package api exposes the HTTP surface of the motion analysis server:
// session management, stream charting, attitude fusion, joint angle
// analysis, time synchronization, and the WebSocket event feed.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/events"
	"github.com/banshee-data/motion.report/internal/fusion"
	"github.com/banshee-data/motion.report/internal/session"
	"github.com/banshee-data/motion.report/internal/timesync"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	registry *session.Registry
	orch     *fusion.Orchestrator
	sync     *timesync.Model
	bus      *events.Bus
	cfg      *config.TuningConfig
	hub      *wsHub

	mu         sync.Mutex
	activeSlot int
}

// NewServer wires the API over the core components. The server
// subscribes to session events so a session switch resets the fusion
// cache and the sync model, and a replaced stream invalidates its slot.
func NewServer(registry *session.Registry, orch *fusion.Orchestrator, syncModel *timesync.Model, bus *events.Bus, cfg *config.TuningConfig) *Server {
	s := &Server{
		registry:   registry,
		orch:       orch,
		sync:       syncModel,
		bus:        bus,
		cfg:        cfg,
		hub:        newWSHub(),
		activeSlot: -1,
	}
	syncModel.SetVideoSeeker(s.hub)

	bus.Subscribe(events.ActiveSessionChanged, func(events.Event) {
		orch.Reset()
		syncModel.Clear()
		s.setActiveSlot(-1)
	})
	bus.Subscribe(events.SessionsChanged, func(ev events.Event) {
		if slot, ok := ev.Data["slot"].(int); ok {
			orch.InvalidateSlot(slot)
		}
	})
	bus.SubscribeAll(func(ev events.Event) {
		s.hub.broadcast(ev)
	})

	return s
}

func (s *Server) setActiveSlot(slot int) {
	s.mu.Lock()
	s.activeSlot = slot
	s.mu.Unlock()
}

func (s *Server) getActiveSlot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSlot
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/select", s.selectSession)
	mux.HandleFunc("/api/sessions/delete", s.deleteSession)
	mux.HandleFunc("/api/imu/upload", s.uploadIMU)
	mux.HandleFunc("/api/imu/select", s.selectIMU)
	mux.HandleFunc("/api/imu/series", s.showSeries)
	mux.HandleFunc("/api/imu/orientation", s.showOrientation)
	mux.HandleFunc("/api/imu/chart", s.showAxisChart)
	mux.HandleFunc("/api/angles", s.showAngles)
	mux.HandleFunc("/api/angles/chart", s.showAngleChart)
	mux.HandleFunc("/api/angles/report.png", s.showAngleReport)
	mux.HandleFunc("/api/timesync", s.handleTimeSync)
	mux.HandleFunc("/api/timesync/", s.timeSyncAction)
	mux.HandleFunc("/api/cursor", s.handleCursor)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/ws", s.handleWS)

	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write response")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := map[string]interface{}{
		"algorithm":             s.cfg.GetAlgorithm(),
		"beta":                  s.cfg.GetBeta(),
		"mahony_kp":             s.cfg.GetMahonyKp(),
		"mahony_ki":             s.cfg.GetMahonyKi(),
		"smoothing_window":      s.cfg.GetSmoothingWindow(),
		"low_pass_cutoff_hz":    s.cfg.GetLowPassCutoffHz(),
		"high_pass_cutoff_hz":   s.cfg.GetHighPassCutoffHz(),
		"max_chart_points":      s.cfg.GetMaxChartPoints(),
		"background_precompute": s.cfg.GetBackgroundPrecompute(),
		"angle_units":           s.cfg.GetAngleUnits(),
	}
	s.writeJSON(w, cfg)
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// queryFloat parses a float query parameter; absent values are an error.
func queryFloat(r *http.Request, name string) (float64, error) {
	return strconv.ParseFloat(r.URL.Query().Get(name), 64)
}
