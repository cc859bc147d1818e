package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/motion.report/internal/ahrs"
	"github.com/banshee-data/motion.report/internal/angles"
	"github.com/banshee-data/motion.report/internal/charts"
	"github.com/banshee-data/motion.report/internal/units"
)

// angleSlots reads the shoulder/elbow/wrist slot assignment from the
// query string. Defaults are slots 0/1/2 in role order.
func angleSlots(r *http.Request) ([3]int, error) {
	var slots [3]int
	for i, name := range []string{angles.RoleShoulder, angles.RoleElbow, angles.RoleWrist} {
		v, err := queryInt(r, name, i)
		if err != nil || v < 0 {
			return slots, fmt.Errorf("invalid %q slot parameter", name)
		}
		slots[i] = v
	}
	return slots, nil
}

// computeAngles fuses all three assigned streams and derives the joint
// angle series.
func (s *Server) computeAngles(r *http.Request) (*angles.Result, [3]int, error) {
	slots, err := angleSlots(r)
	if err != nil {
		return nil, slots, err
	}

	if n := s.registry.StreamCount(); n < 3 {
		return nil, slots, fmt.Errorf("angle analysis needs 3 IMU streams, active session has %d", n)
	}

	results := make([]*ahrs.FusionResult, 3)
	for i, slot := range slots {
		res, err := s.orch.Select(s.registry, slot)
		if err != nil {
			return nil, slots, fmt.Errorf("slot %d: %w", slot, err)
		}
		results[i] = res
	}

	result, err := angles.Compute(results[0], results[1], results[2], slots)
	if err != nil {
		return nil, slots, err
	}

	// Optional trim to the applied analysis timeframe.
	if start, err := queryFloat(r, "start"); err == nil {
		if end, err := queryFloat(r, "end"); err == nil && end > start {
			result = trimResult(result, start, end)
		}
	}
	return result, slots, nil
}

// trimResult restricts the series to times within [start, end] and
// recomputes the summary statistics over the window.
func trimResult(in *angles.Result, start, end float64) *angles.Result {
	var out angles.Series
	for i, t := range in.Series.Times {
		if t < start || t > end {
			continue
		}
		out.Times = append(out.Times, t)
		out.Elbow = append(out.Elbow, in.Series.Elbow[i])
		out.Wrist = append(out.Wrist, in.Series.Wrist[i])
		out.Shoulder = append(out.Shoulder, in.Series.Shoulder[i])
	}
	return &angles.Result{
		Series: out,
		Elbow:  angles.Summarize(out.Elbow),
		Wrist:  angles.Summarize(out.Wrist),
	}
}

// convertResultUnits maps the degree-valued series and stats into the
// configured output units.
func convertResultUnits(in *angles.Result, target string) *angles.Result {
	if target == units.Degrees {
		return in
	}
	conv := func(vs []float64) []float64 {
		out := make([]float64, len(vs))
		for i, v := range vs {
			out[i] = units.ConvertAngle(v, target)
		}
		return out
	}
	convStats := func(st angles.Stats) angles.Stats {
		return angles.Stats{
			Mean:  units.ConvertAngle(st.Mean, target),
			Min:   units.ConvertAngle(st.Min, target),
			Max:   units.ConvertAngle(st.Max, target),
			Range: units.ConvertAngle(st.Range, target),
		}
	}
	return &angles.Result{
		Series: angles.Series{
			Times:    in.Series.Times,
			Elbow:    conv(in.Series.Elbow),
			Wrist:    conv(in.Series.Wrist),
			Shoulder: in.Series.Shoulder,
		},
		Elbow: convStats(in.Elbow),
		Wrist: convStats(in.Wrist),
	}
}

// showAngles runs the joint angle analysis across the shoulder/elbow/
// wrist slots and returns series plus statistics. Query params:
// shoulder, elbow, wrist (slot indices), start, end (optional window).
func (s *Server) showAngles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, slots, err := s.computeAngles(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := s.cfg.GetAngleUnits()
	s.writeJSON(w, map[string]interface{}{
		"slots":  map[string]int{angles.RoleShoulder: slots[0], angles.RoleElbow: slots[1], angles.RoleWrist: slots[2]},
		"units":  target,
		"result": convertResultUnits(result, target),
	})
}

// showAngleChart renders the angle series as an HTML line chart.
func (s *Server) showAngleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, _, err := s.computeAngles(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := charts.RenderAngleChart(&buf, "Arm Joint Angles", result.Series); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// showAngleReport exports the angle series as a PNG.
func (s *Server) showAngleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, _, err := s.computeAngles(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := charts.WriteAnglePNG(&buf, "Arm Joint Angles", result.Series); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render report: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
