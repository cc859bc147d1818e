package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/motion.report/internal/charts"
	"github.com/banshee-data/motion.report/internal/dsp"
	"github.com/banshee-data/motion.report/internal/fusion"
	"github.com/banshee-data/motion.report/internal/imucsv"
)

// selectIMU makes one stream of the active session the charting focus,
// computing its fusion result and kicking off background precompute for
// the rest.
func (s *Server) selectIMU(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	slot, err := queryInt(r, "slot", -1)
	if err != nil || slot < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'slot' parameter")
		return
	}

	result, err := s.orch.Select(s.registry, slot)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Fusion failed: %v", err))
		return
	}

	s.setActiveSlot(slot)
	if result.Len() > 0 {
		s.sync.SetStreamRange(result.Times[0], result.Times[result.Len()-1])
	}

	s.writeJSON(w, map[string]interface{}{
		"slot":           slot,
		"samples":        result.Len(),
		"algorithm":      result.Algorithm,
		"sample_rate_hz": result.SampleRateHz,
	})
}

// seriesForRequest extracts one conditioned axis series from a stream.
func (s *Server) seriesForRequest(r *http.Request) (times, values []float64, err error) {
	slot, err := queryInt(r, "slot", s.getActiveSlot())
	if err != nil || slot < 0 {
		return nil, nil, fmt.Errorf("invalid or missing 'slot' parameter")
	}

	table, err := s.registry.Stream(slot)
	if err != nil {
		return nil, nil, err
	}
	// Clone before normalizing: the registry's table may be in use by a
	// background fusion worker.
	table = table.Clone()

	times, _, err = fusion.PrepareTimes(table)
	if err != nil {
		return nil, nil, err
	}

	sensor := imucsv.Sensor(r.URL.Query().Get("sensor"))
	if sensor == "" {
		sensor = imucsv.Accelerometer
	}
	triplet, err := table.SensorTriplet(sensor)
	if err != nil {
		return nil, nil, err
	}

	axis := r.URL.Query().Get("axis")
	switch axis {
	case "x", "":
		values = triplet.X
	case "y":
		values = triplet.Y
	case "z":
		values = triplet.Z
	case "magnitude":
		values = dsp.Magnitude(triplet.X, triplet.Y, triplet.Z)
	default:
		return nil, nil, fmt.Errorf("unknown axis %q (want x, y, z or magnitude)", axis)
	}

	if r.URL.Query().Get("raw") != "true" && sensor == imucsv.Accelerometer {
		removeGravity := r.URL.Query().Get("remove_gravity") == "true"
		values = dsp.FilterAccelerationAxis(values, times, removeGravity)
	} else if win := s.cfg.GetSmoothingWindow(); win > 1 && r.URL.Query().Get("raw") != "true" {
		values = dsp.MovingAverage(values, win)
	}

	maxPoints, err := queryInt(r, "max_points", s.cfg.GetMaxChartPoints())
	if err != nil || maxPoints < 0 {
		return nil, nil, fmt.Errorf("invalid 'max_points' parameter")
	}
	times, values = dsp.DownsampleXY(times, values, maxPoints)
	return times, values, nil
}

// showSeries returns one conditioned axis series as JSON. Query params:
// slot, sensor, axis, raw, remove_gravity, max_points.
func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	times, values, err := s.seriesForRequest(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"times": times, "values": values})
}

// showAxisChart renders the same series as a standalone HTML chart.
func (s *Server) showAxisChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	times, values, err := s.seriesForRequest(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor := r.URL.Query().Get("sensor")
	if sensor == "" {
		sensor = string(imucsv.Accelerometer)
	}
	axis := r.URL.Query().Get("axis")
	if axis == "" {
		axis = "x"
	}
	name := fmt.Sprintf("%s %s", sensor, axis)

	var buf bytes.Buffer
	if err := charts.RenderAxisChart(&buf, name, times, []charts.AxisSeries{{Name: name, Values: values}}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// showOrientation returns the fused orientation sample nearest a given
// time on one slot. Query params: slot (default: active), t (seconds).
func (s *Server) showOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	slot, err := queryInt(r, "slot", s.getActiveSlot())
	if err != nil || slot < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid or missing 'slot' parameter")
		return
	}
	t, err := queryFloat(r, "t")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 't' parameter")
		return
	}

	result, ok := s.orch.Cached(slot)
	if !ok || result == nil {
		result, err = s.orch.Select(s.registry, slot)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Fusion failed: %v", err))
			return
		}
	}

	sample, ok := fusion.OrientationAt(result, t)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "No orientation samples available")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"slot":        slot,
		"t":           t,
		"orientation": sample,
	})
}
