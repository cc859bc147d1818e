// Package session manages recording sessions: named groups of uploaded
// IMU streams, at most one of which is active at a time.
//
// Sessions are held in memory only. An analysis workspace is rebuilt
// from the source CSVs each run; there is nothing durable to persist.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/events"
	"github.com/banshee-data/motion.report/internal/imucsv"
	"github.com/banshee-data/motion.report/internal/monitoring"
)

// IMUStream is one uploaded sensor recording within a session.
type IMUStream struct {
	Label   string `json:"label"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`

	table *imucsv.Table
}

// Table returns the parsed recording.
func (s *IMUStream) Table() *imucsv.Table { return s.table }

// Session is a named group of IMU streams, typically one capture event
// with shoulder/elbow/wrist sensors recorded side by side.
type Session struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	VideoPath string       `json:"video_path,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	IMUs      []*IMUStream `json:"imus"`
}

// Registry holds every session and tracks the active one. Safe for
// concurrent use. Publishes sessions-changed and active-session-changed
// on the bus; downstream components (fusion cache, time-sync model)
// subscribe to reset themselves on a switch.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	activeID string

	bus *events.Bus
	now func() time.Time
}

// NewRegistry creates an empty registry publishing on bus.
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		bus:      bus,
		now:      time.Now,
	}
}

// Create adds a new empty session and returns it.
func (r *Registry) Create(name string) (*Session, error) {
	if name == "" {
		return nil, fmt.Errorf("session name must not be empty")
	}

	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	monitoring.Logf("[Session] created %q (%s)", name, s.ID)
	r.bus.Publish(events.SessionsChanged, map[string]interface{}{"session_id": s.ID})
	return s, nil
}

// Get returns a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// List returns all sessions, newest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a session. Deleting the active session clears the
// active selection.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown session %q", id)
	}
	delete(r.sessions, id)
	wasActive := r.activeID == id
	if wasActive {
		r.activeID = ""
	}
	r.mu.Unlock()

	r.bus.Publish(events.SessionsChanged, map[string]interface{}{"session_id": id})
	if wasActive {
		r.bus.Publish(events.ActiveSessionChanged, map[string]interface{}{"session_id": ""})
	}
	return nil
}

// SetActive switches the active session. Switching to the already-active
// session is a no-op and publishes nothing.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown session %q", id)
	}
	if r.activeID == id {
		r.mu.Unlock()
		return nil
	}
	r.activeID = id
	r.mu.Unlock()

	monitoring.Logf("[Session] active session -> %s", id)
	r.bus.Publish(events.ActiveSessionChanged, map[string]interface{}{"session_id": id})
	return nil
}

// Active returns the active session, or nil if none is selected.
func (r *Registry) Active() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[r.activeID]
}

// AddIMU parses csvText and appends it as a new stream on the session,
// returning the slot index.
func (r *Registry) AddIMU(sessionID, label, csvText string) (int, error) {
	table, err := imucsv.Parse(csvText)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", label, err)
	}
	if _, _, _, err := table.NineDOF(); err != nil {
		return 0, fmt.Errorf("%q: %w", label, err)
	}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("unknown session %q", sessionID)
	}
	if label == "" {
		label = fmt.Sprintf("imu-%d", len(s.IMUs)+1)
	}
	s.IMUs = append(s.IMUs, &IMUStream{
		Label:   label,
		Rows:    len(table.Rows),
		Columns: len(table.Headers),
		table:   table,
	})
	slot := len(s.IMUs) - 1
	r.mu.Unlock()

	monitoring.Logf("[Session] %s: added IMU %q in slot %d (%d rows)", sessionID, label, slot, len(table.Rows))
	r.bus.Publish(events.SessionsChanged, map[string]interface{}{"session_id": sessionID, "slot": slot})
	return slot, nil
}

// ReplaceIMU swaps the recording in an existing slot. The caller must
// invalidate the fusion cache for the slot afterwards.
func (r *Registry) ReplaceIMU(sessionID string, slot int, csvText string) error {
	table, err := imucsv.Parse(csvText)
	if err != nil {
		return err
	}
	if _, _, _, err := table.NineDOF(); err != nil {
		return err
	}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown session %q", sessionID)
	}
	if slot < 0 || slot >= len(s.IMUs) {
		r.mu.Unlock()
		return fmt.Errorf("session %q has no slot %d", sessionID, slot)
	}
	s.IMUs[slot].table = table
	s.IMUs[slot].Rows = len(table.Rows)
	s.IMUs[slot].Columns = len(table.Headers)
	r.mu.Unlock()

	r.bus.Publish(events.SessionsChanged, map[string]interface{}{"session_id": sessionID, "slot": slot})
	return nil
}

// SetVideoPath records the session's companion video file.
func (r *Registry) SetVideoPath(sessionID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("unknown session %q", sessionID)
	}
	s.VideoPath = path
	return nil
}

// StreamCount implements fusion.Source over the active session.
func (r *Registry) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[r.activeID]
	if s == nil {
		return 0
	}
	return len(s.IMUs)
}

// Stream implements fusion.Source over the active session.
func (r *Registry) Stream(slot int) (*imucsv.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[r.activeID]
	if s == nil {
		return nil, fmt.Errorf("no active session")
	}
	if slot < 0 || slot >= len(s.IMUs) {
		return nil, fmt.Errorf("session %q has no slot %d", s.ID, slot)
	}
	return s.IMUs[slot].table, nil
}
