// Package timesync aligns the video timeline with the IMU timeline.
//
// The user marks one moment on each timeline; the difference becomes the
// offset that maps query times between the two domains. An optional
// T1/T2 sub-range bounds the IMU cursor to the interval of interest.
package timesync

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/motion.report/internal/events"
)

// State is a snapshot of the sync model, shaped for the /api/timesync
// endpoint.
type State struct {
	VideoMarkerSeconds *float64 `json:"video_marker_seconds"`
	IMUMarkerSeconds   *float64 `json:"imu_marker_seconds"`
	OffsetSeconds      *float64 `json:"offset_seconds"`
	T1                 *float64 `json:"t1"`
	T2                 *float64 `json:"t2"`
	FollowVideo        bool     `json:"follow_video"`
	CursorSeconds      float64  `json:"cursor_seconds"`
	MinX               float64  `json:"min_x"`
	MaxX               float64  `json:"max_x"`
}

// VideoSeeker is notified when a cursor move must be reflected on the
// video playhead (follow mode, reverse direction). The WebSocket layer
// implements this by telling the browser player to seek.
type VideoSeeker interface {
	SeekVideo(seconds float64)
}

// Model holds the video/IMU offset, the optional analysis bounds and the
// IMU cursor. Safe for concurrent use. All state is reset when the
// active session changes.
type Model struct {
	mu sync.Mutex

	videoMarker *float64
	imuMarker   *float64
	offset      *float64
	t1, t2      *float64
	followVideo bool

	cursor       float64
	streamMin    float64
	streamMax    float64
	activeMin    float64
	activeMax    float64
	boundsActive bool

	// propagating suppresses the reverse mapping while a video update is
	// being applied, so the two listeners cannot ping-pong.
	propagating bool

	bus    *events.Bus
	seeker VideoSeeker
}

// NewModel creates a sync model publishing to the given bus. seeker may
// be nil if no video backchannel exists.
func NewModel(bus *events.Bus, seeker VideoSeeker) *Model {
	return &Model{bus: bus, seeker: seeker}
}

// SetVideoSeeker installs the video backchannel after construction. The
// WebSocket hub is built later than the model, so it wires itself in
// here.
func (m *Model) SetVideoSeeker(seeker VideoSeeker) {
	m.mu.Lock()
	m.seeker = seeker
	m.mu.Unlock()
}

// SetStreamRange sets the full IMU time range, called when a stream is
// (re)loaded. The cursor is re-clamped into the new range.
func (m *Model) SetStreamRange(min, max float64) {
	m.mu.Lock()
	m.streamMin, m.streamMax = min, max
	if !m.boundsActive {
		m.activeMin, m.activeMax = min, max
	}
	m.cursor = clamp(m.cursor, m.activeMin, m.activeMax)
	m.mu.Unlock()
}

// Cursor returns the current IMU cursor position in seconds.
func (m *Model) Cursor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// SetCursor moves the IMU cursor, clamped to the active bounds, and
// publishes imu-cursor-changed. In follow mode a user-initiated cursor
// move also drives the video playhead through the reverse mapping.
func (m *Model) SetCursor(t float64) {
	m.mu.Lock()
	m.cursor = clamp(t, m.activeMin, m.activeMax)
	cursor := m.cursor
	follow := m.followVideo && !m.propagating
	seeker := m.seeker
	var videoT float64
	hasOffset := m.offset != nil
	if hasOffset {
		videoT = cursor + *m.offset
	}
	m.mu.Unlock()

	m.bus.Publish(events.IMUCursorChanged, map[string]interface{}{"imu_time": cursor})

	if follow && hasOffset && seeker != nil {
		seeker.SeekVideo(videoT)
	}
}

// OnVideoTimeUpdate propagates a video playhead position into the IMU
// cursor when follow mode is on. The re-entrancy guard keeps the cursor
// move from seeking the video right back.
func (m *Model) OnVideoTimeUpdate(videoSeconds float64) {
	m.mu.Lock()
	if !m.followVideo || m.offset == nil {
		m.mu.Unlock()
		return
	}
	imuT := videoSeconds - *m.offset
	m.propagating = true
	m.mu.Unlock()

	m.SetCursor(imuT)

	m.mu.Lock()
	m.propagating = false
	m.mu.Unlock()
}

// MarkVideo captures the current video playhead as the video sync marker.
func (m *Model) MarkVideo(videoSeconds float64) {
	m.mu.Lock()
	m.videoMarker = ptr(videoSeconds)
	m.mu.Unlock()
	m.publishSyncChanged()
}

// MarkIMU captures the current IMU cursor as the IMU sync marker.
func (m *Model) MarkIMU() {
	m.mu.Lock()
	m.imuMarker = ptr(m.cursor)
	m.mu.Unlock()
	m.publishSyncChanged()
}

// ComputeOffset derives offset = videoMarker - imuMarker. Both markers
// must be set. Computing an offset lands the model in manual mode; the
// user opts into follow mode explicitly.
func (m *Model) ComputeOffset() (float64, error) {
	m.mu.Lock()
	if m.videoMarker == nil || m.imuMarker == nil {
		m.mu.Unlock()
		return 0, fmt.Errorf("both video and IMU markers must be set before computing the offset")
	}
	offset := *m.videoMarker - *m.imuMarker
	m.offset = ptr(offset)
	m.followVideo = false
	m.mu.Unlock()

	m.publishSyncChanged()
	m.publishModeChanged()
	return offset, nil
}

// VideoToIMU maps a video time into IMU time. Requires a computed offset.
func (m *Model) VideoToIMU(videoSeconds float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offset == nil {
		return 0, fmt.Errorf("no offset computed")
	}
	return videoSeconds - *m.offset, nil
}

// IMUToVideo maps an IMU time into video time. Requires a computed offset.
func (m *Model) IMUToVideo(imuSeconds float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offset == nil {
		return 0, fmt.Errorf("no offset computed")
	}
	return imuSeconds + *m.offset, nil
}

// SetFollowVideo toggles follow mode. Requires a computed offset.
func (m *Model) SetFollowVideo(follow bool) error {
	m.mu.Lock()
	if follow && m.offset == nil {
		m.mu.Unlock()
		return fmt.Errorf("compute an offset before enabling follow mode")
	}
	m.followVideo = follow
	m.mu.Unlock()

	m.publishModeChanged()
	return nil
}

// MarkT1 captures the current cursor as the lower analysis bound.
func (m *Model) MarkT1() {
	m.mu.Lock()
	m.t1 = ptr(m.cursor)
	t1, t2 := m.t1, m.t2
	m.mu.Unlock()
	m.publishTimeframeMarked(t1, t2)
}

// MarkT2 captures the current cursor as the upper analysis bound.
func (m *Model) MarkT2() {
	m.mu.Lock()
	m.t2 = ptr(m.cursor)
	t1, t2 := m.t1, m.t2
	m.mu.Unlock()
	m.publishTimeframeMarked(t1, t2)
}

// ApplyTimeframe publishes the ordered [min,max] of T1/T2 as the active
// cursor range. T1 and T2 must both be set and differ.
func (m *Model) ApplyTimeframe() (start, end float64, err error) {
	m.mu.Lock()
	if m.t1 == nil || m.t2 == nil {
		m.mu.Unlock()
		return 0, 0, fmt.Errorf("mark both T1 and T2 before applying a timeframe")
	}
	if *m.t1 == *m.t2 {
		m.mu.Unlock()
		return 0, 0, fmt.Errorf("T1 and T2 must differ")
	}
	start = math.Min(*m.t1, *m.t2)
	end = math.Max(*m.t1, *m.t2)
	m.activeMin, m.activeMax = start, end
	m.boundsActive = true
	m.cursor = clamp(m.cursor, start, end)
	m.mu.Unlock()

	m.bus.Publish(events.IMUTimeframeApplied, map[string]interface{}{"start": start, "end": end})
	return start, end, nil
}

// ResetBounds clears T1/T2 and reverts the cursor range to the full
// stream.
func (m *Model) ResetBounds() {
	m.mu.Lock()
	m.t1, m.t2 = nil, nil
	m.boundsActive = false
	m.activeMin, m.activeMax = m.streamMin, m.streamMax
	m.cursor = clamp(m.cursor, m.activeMin, m.activeMax)
	m.mu.Unlock()

	m.bus.Publish(events.IMUTimeframeReset, nil)
}

// Clear resets every field. Called on active-session change.
func (m *Model) Clear() {
	m.mu.Lock()
	m.videoMarker, m.imuMarker, m.offset = nil, nil, nil
	m.t1, m.t2 = nil, nil
	m.followVideo = false
	m.boundsActive = false
	m.cursor = 0
	m.streamMin, m.streamMax = 0, 0
	m.activeMin, m.activeMax = 0, 0
	m.mu.Unlock()

	m.publishSyncChanged()
	m.publishModeChanged()
}

// Snapshot returns the current state for the API and chart overlays.
func (m *Model) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		VideoMarkerSeconds: copyPtr(m.videoMarker),
		IMUMarkerSeconds:   copyPtr(m.imuMarker),
		OffsetSeconds:      copyPtr(m.offset),
		T1:                 copyPtr(m.t1),
		T2:                 copyPtr(m.t2),
		FollowVideo:        m.followVideo,
		CursorSeconds:      m.cursor,
		MinX:               m.activeMin,
		MaxX:               m.activeMax,
	}
}

func (m *Model) publishSyncChanged() {
	s := m.Snapshot()
	data := map[string]interface{}{}
	if s.OffsetSeconds != nil {
		data["offset"] = *s.OffsetSeconds
	}
	if s.VideoMarkerSeconds != nil {
		data["video_marker"] = *s.VideoMarkerSeconds
	}
	if s.IMUMarkerSeconds != nil {
		data["imu_marker"] = *s.IMUMarkerSeconds
	}
	m.bus.Publish(events.TimeSyncChanged, data)
}

func (m *Model) publishModeChanged() {
	m.mu.Lock()
	follow := m.followVideo
	m.mu.Unlock()
	m.bus.Publish(events.TimeSyncModeChanged, map[string]interface{}{"follow_video": follow})
}

func (m *Model) publishTimeframeMarked(t1, t2 *float64) {
	data := map[string]interface{}{}
	if t1 != nil {
		data["t1"] = *t1
	}
	if t2 != nil {
		data["t2"] = *t2
	}
	m.bus.Publish(events.IMUTimeframeMarked, data)
}

func clamp(v, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func ptr(v float64) *float64 { return &v }

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
