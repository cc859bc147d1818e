package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxUploadBytes caps a single CSV upload.
const maxUploadBytes = 64 * 1024 * 1024

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.registry.List())
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
		sess, err := s.registry.Create(req.Name)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, sess)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) selectSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}
	if err := s.registry.SetActive(id); err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"active": id})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}
	if err := s.registry.Delete(id); err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"deleted": id})
}

// uploadIMU accepts raw CSV text as the request body. Query params:
//   - session_id (required)
//   - label (optional)
//   - slot (optional; replaces an existing stream instead of appending)
func (s *Server) uploadIMU(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session_id' parameter")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
		return
	}
	if len(body) > maxUploadBytes {
		s.writeJSONError(w, http.StatusRequestEntityTooLarge, "CSV upload too large")
		return
	}

	if slotStr := r.URL.Query().Get("slot"); slotStr != "" {
		slot, err := queryInt(r, "slot", -1)
		if err != nil || slot < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'slot' parameter")
			return
		}
		if err := s.registry.ReplaceIMU(sessionID, slot, string(body)); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, map[string]interface{}{"session_id": sessionID, "slot": slot, "replaced": true})
		return
	}

	slot, err := s.registry.AddIMU(sessionID, r.URL.Query().Get("label"), string(body))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"session_id": sessionID, "slot": slot})
}
