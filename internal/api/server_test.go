package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/ahrs"
	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/events"
	"github.com/banshee-data/motion.report/internal/fusion"
	"github.com/banshee-data/motion.report/internal/session"
	"github.com/banshee-data/motion.report/internal/timesync"
)

type testEnv struct {
	server   *Server
	mux      *http.ServeMux
	registry *session.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bus := events.NewBus()
	registry := session.NewRegistry(bus)
	orch := fusion.NewOrchestrator(ahrs.Options{Algorithm: ahrs.AlgorithmMadgwick, Beta: 0.3}, false, nil)
	model := timesync.NewModel(bus, nil)
	srv := NewServer(registry, orch, model, bus, config.EmptyTuningConfig())
	return &testEnv{server: srv, mux: srv.ServeMux(), registry: registry}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v),
		"body: %s", rec.Body.String())
}

// tiltedCSV synthesizes a stationary 9-DOF recording from a sensor
// rolled by rollDeg about the X axis: the gravity vector rotates into
// the Y/Z plane, gyro reads zero, magnetometer reads a constant field.
func tiltedCSV(rollDeg float64, n int) string {
	phi := rollDeg * math.Pi / 180
	ay := math.Sin(phi)
	az := math.Cos(phi)

	var b strings.Builder
	b.WriteString("time,acc_x,acc_y,acc_z,gyro_x,gyro_y,gyro_z,mag_x,mag_y,mag_z\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%.4f,0,%.6f,%.6f,0,0,0,0.3,0,0.5\n", float64(i)*0.01, ay, az)
	}
	return b.String()
}

// setupSession creates an active session with the given streams.
func (e *testEnv) setupSession(t *testing.T, rolls ...float64) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", `{"name":"throws"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess struct {
		ID string `json:"id"`
	}
	decode(t, rec, &sess)

	for i, roll := range rolls {
		rec = e.do(t, http.MethodPost,
			fmt.Sprintf("/api/imu/upload?session_id=%s&label=imu%d", sess.ID, i),
			tiltedCSV(roll, 2000))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/sessions/select?id="+sess.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	return sess.ID
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/sessions", `{"name":"first"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "first", created.Name)
	assert.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = e.do(t, http.MethodPost, "/api/sessions/delete?id="+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/sessions/delete?id="+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionRejectsEmptyName(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/sessions", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsBadCSV(t *testing.T) {
	e := newTestEnv(t)
	id := e.setupSession(t)

	rec := e.do(t, http.MethodPost, "/api/imu/upload?session_id="+id, "time,acc_x\n0,1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectIMUAndSeries(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0)

	rec := e.do(t, http.MethodPost, "/api/imu/select?slot=0", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sel struct {
		Samples      int     `json:"samples"`
		Algorithm    string  `json:"algorithm"`
		SampleRateHz float64 `json:"sample_rate_hz"`
	}
	decode(t, rec, &sel)
	assert.Equal(t, 2000, sel.Samples)
	assert.Equal(t, "madgwick", sel.Algorithm)
	assert.InDelta(t, 100, sel.SampleRateHz, 1)

	rec = e.do(t, http.MethodGet, "/api/imu/series?slot=0&sensor=accelerometer&axis=magnitude&raw=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var series struct {
		Times  []float64 `json:"times"`
		Values []float64 `json:"values"`
	}
	decode(t, rec, &series)
	require.Equal(t, len(series.Times), len(series.Values))
	require.NotEmpty(t, series.Values)
	assert.InDelta(t, 1.0, series.Values[len(series.Values)/2], 1e-6)
}

func TestSeriesRejectsUnknownAxis(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0)

	rec := e.do(t, http.MethodGet, "/api/imu/series?slot=0&axis=w", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrientationAtTime(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0)

	rec := e.do(t, http.MethodGet, "/api/imu/orientation?slot=0&t=15.0", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Slot        int `json:"slot"`
		Orientation struct {
			Quaternion ahrs.Quaternion `json:"quaternion"`
		} `json:"orientation"`
	}
	decode(t, rec, &resp)
	// Stationary level sensor: orientation stays near identity.
	assert.InDelta(t, 1.0, math.Abs(resp.Orientation.Quaternion.W), 0.01)
}

// Three stationary sensors rolled 0°/30°/75° about the same axis: the
// elbow angle (shoulder vs elbow) converges to 30° and the wrist angle
// (elbow vs wrist) to 45°, with near-zero range once settled.
func TestAnglesAcrossThreeStreams(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0, 30, 75)

	rec := e.do(t, http.MethodGet, "/api/angles?start=10&end=20", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Units  string `json:"units"`
		Result struct {
			Elbow struct {
				Mean  float64 `json:"mean"`
				Range float64 `json:"range"`
			} `json:"elbow_stats"`
			Wrist struct {
				Mean  float64 `json:"mean"`
				Range float64 `json:"range"`
			} `json:"wrist_stats"`
		} `json:"result"`
	}
	decode(t, rec, &resp)

	assert.Equal(t, "degrees", resp.Units)
	assert.InDelta(t, 30, resp.Result.Elbow.Mean, 1.0)
	assert.InDelta(t, 45, resp.Result.Wrist.Mean, 1.0)
	assert.Less(t, resp.Result.Elbow.Range, 1.0)
	assert.Less(t, resp.Result.Wrist.Range, 1.0)
}

func TestAnglesRequireThreeStreams(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0, 30)

	rec := e.do(t, http.MethodGet, "/api/angles", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "3 IMU streams")
}

func TestAnglesRejectDuplicateSlots(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0, 30, 75)

	rec := e.do(t, http.MethodGet, "/api/angles?shoulder=0&elbow=0&wrist=2", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "distinct")
}

func TestTimeSyncFlow(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0)
	rec := e.do(t, http.MethodPost, "/api/imu/select?slot=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/timesync/mark_video?t=10.0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/cursor?t=7.5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/timesync/mark_imu", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/timesync/compute_offset", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var off struct {
		Offset float64 `json:"offset"`
	}
	decode(t, rec, &off)
	assert.InDelta(t, 2.5, off.Offset, 1e-9)

	rec = e.do(t, http.MethodGet, "/api/timesync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap timesync.State
	decode(t, rec, &snap)
	require.NotNil(t, snap.OffsetSeconds)
	assert.InDelta(t, 2.5, *snap.OffsetSeconds, 1e-9)
}

func TestTimeframeActions(t *testing.T) {
	e := newTestEnv(t)
	e.setupSession(t, 0)
	rec := e.do(t, http.MethodPost, "/api/imu/select?slot=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	e.do(t, http.MethodPost, "/api/cursor?t=3.0", "")
	e.do(t, http.MethodPost, "/api/timesync/mark_t1", "")
	e.do(t, http.MethodPost, "/api/cursor?t=1.0", "")
	e.do(t, http.MethodPost, "/api/timesync/mark_t2", "")

	rec = e.do(t, http.MethodPost, "/api/timesync/apply_timeframe", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tf struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	decode(t, rec, &tf)
	assert.Equal(t, 1.0, tf.Start)
	assert.Equal(t, 3.0, tf.End)

	// Cursor clamps to the applied window.
	rec = e.do(t, http.MethodPost, "/api/cursor?t=9.0", "")
	var cur struct {
		Cursor float64 `json:"cursor"`
	}
	decode(t, rec, &cur)
	assert.Equal(t, 3.0, cur.Cursor)
}

func TestSessionSwitchClearsSync(t *testing.T) {
	e := newTestEnv(t)
	first := e.setupSession(t, 0)
	_ = first
	e.do(t, http.MethodPost, "/api/timesync/mark_video?t=5", "")

	// Second session; switching must wipe the sync state.
	rec := e.do(t, http.MethodPost, "/api/sessions", `{"name":"second"}`)
	var sess struct {
		ID string `json:"id"`
	}
	decode(t, rec, &sess)
	rec = e.do(t, http.MethodPost, "/api/sessions/select?id="+sess.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/timesync", "")
	var snap timesync.State
	decode(t, rec, &snap)
	assert.Nil(t, snap.VideoMarkerSeconds)
}

func TestShowConfig(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]interface{}
	decode(t, rec, &cfg)
	assert.Equal(t, "madgwick", cfg["algorithm"])
	assert.Equal(t, "degrees", cfg["angle_units"])
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	for _, target := range []string{"/api/config", "/api/timesync", "/api/angles"} {
		rec := e.do(t, http.MethodDelete, target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}
