// Package imucsv parses uploaded IMU recordings and locates sensor axis
// columns by header name.
//
// The input format is deliberately simple: UTF-8 text, comma-separated,
// one header row, no quoting or escaping. Sensor exports in this domain
// are plain numeric dumps; a full CSV dialect parser buys nothing here.
package imucsv

import (
	"fmt"
	"strconv"
	"strings"
)

// Table holds a parsed recording: the header row plus every data row.
// Cells are kept as strings; numeric interpretation happens at the point
// of use so that non-numeric metadata columns survive parsing.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Parse splits raw CSV text into headers and rows. Cells and lines are
// trimmed; blank lines are skipped. An input without a header row or with
// no data rows is an error.
func Parse(text string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var headers []string
	var rows [][]string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := strings.Split(line, ",")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if headers == nil {
			headers = cells
			continue
		}
		rows = append(rows, cells)
	}

	if headers == nil {
		return nil, fmt.Errorf("empty CSV: no header row found")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty CSV: header %q has no data rows", strings.Join(headers, ","))
	}
	return &Table{Headers: headers, Rows: rows}, nil
}

// NumericColumn returns column idx parsed as float64, with missing or
// unparseable cells mapped to NaN. Occasional garbage rows must not abort
// the whole stream; downstream filters treat NaN as "measurement invalid".
func (t *Table) NumericColumn(idx int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if idx >= len(row) {
			out[i] = nan
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			out[i] = nan
			continue
		}
		out[i] = v
	}
	return out
}

// SetColumn overwrites column idx with the given values, formatting them
// back into the row cells. Rows beyond len(values) are left untouched.
func (t *Table) SetColumn(idx int, values []float64) {
	for i, row := range t.Rows {
		if i >= len(values) || idx >= len(row) {
			continue
		}
		row[idx] = strconv.FormatFloat(values[i], 'g', -1, 64)
	}
}

// Clone returns a deep copy of the table. The fusion pipeline rewrites
// timestamp cells in place during normalization, so every compute runs on
// its own copy and the shared table backing a session is never mutated.
func (t *Table) Clone() *Table {
	headers := make([]string, len(t.Headers))
	copy(headers, t.Headers)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = make([]string, len(row))
		copy(rows[i], row)
	}
	return &Table{Headers: headers, Rows: rows}
}
