package api

import (
	"net/http"
	"strings"
)

// handleTimeSync returns the full sync model snapshot.
func (s *Server) handleTimeSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.sync.Snapshot())
}

// timeSyncAction dispatches POST /api/timesync/<action> requests.
func (s *Server) timeSyncAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	action := strings.TrimPrefix(r.URL.Path, "/api/timesync/")
	switch action {
	case "mark_video":
		t, err := queryFloat(r, "t")
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 't' parameter")
			return
		}
		s.sync.MarkVideo(t)

	case "mark_imu":
		s.sync.MarkIMU()

	case "compute_offset":
		offset, err := s.sync.ComputeOffset()
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, map[string]float64{"offset": offset})
		return

	case "follow":
		follow := r.URL.Query().Get("enabled") == "true"
		if err := s.sync.SetFollowVideo(follow); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

	case "mark_t1":
		s.sync.MarkT1()

	case "mark_t2":
		s.sync.MarkT2()

	case "apply_timeframe":
		start, end, err := s.sync.ApplyTimeframe()
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, map[string]float64{"start": start, "end": end})
		return

	case "reset_bounds":
		s.sync.ResetBounds()

	case "video_time":
		t, err := queryFloat(r, "t")
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 't' parameter")
			return
		}
		s.sync.OnVideoTimeUpdate(t)

	default:
		s.writeJSONError(w, http.StatusNotFound, "Unknown time-sync action")
		return
	}

	s.writeJSON(w, s.sync.Snapshot())
}

// handleCursor reads or moves the IMU cursor.
func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, map[string]float64{"cursor": s.sync.Cursor()})
	case http.MethodPost:
		t, err := queryFloat(r, "t")
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 't' parameter")
			return
		}
		s.sync.SetCursor(t)
		s.writeJSON(w, map[string]float64{"cursor": s.sync.Cursor()})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
