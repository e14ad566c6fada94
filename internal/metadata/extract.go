package metadata

import (
	"strings"

	"edfanon/internal/edf"
)

// Well-known per-channel field names accepted by Extract.
const (
	FieldLabel      = "label"
	FieldSampleRate = "sample_rate"
	FieldDimension  = "dimension"
)

// Row is one channel's wide metadata: named cells in insertion order.
type Row struct {
	columns []string
	cells   map[string]Value
}

// Set stores a cell, registering the column on first use.
func (r *Row) Set(column string, value Value) {
	if r.cells == nil {
		r.cells = make(map[string]Value)
	}
	if _, ok := r.cells[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.cells[column] = value
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string {
	return r.columns
}

// Get returns the cell for a column, Null when absent.
func (r *Row) Get(column string) Value {
	if v, ok := r.cells[column]; ok {
		return v
	}
	return Null()
}

// ParseIssue reports a malformed filter-annotation token. Issues are
// informational; the token is skipped and extraction continues.
type ParseIssue struct {
	Channel int
	Label   string
	Token   string
}

// Extract builds one Row per channel, in channel order, containing the
// requested fields (absent or unknown field names yield Null cells) plus any
// key:value tokens parsed from the channel's free-text filter annotation.
func Extract(rec *edf.Recording, fields []string) ([]Row, []ParseIssue) {
	rows := make([]Row, 0, len(rec.Signals))
	var issues []ParseIssue

	for i, signal := range rec.Signals {
		var row Row
		for _, field := range fields {
			row.Set(field, channelField(signal, rec.RecordDuration, field))
		}

		for _, token := range strings.Fields(signal.Prefilter) {
			key, value, ok := strings.Cut(token, ":")
			if !ok || key == "" {
				issues = append(issues, ParseIssue{Channel: i, Label: signal.Label, Token: token})
				continue
			}
			row.Set(key, String(value))
		}
		rows = append(rows, row)
	}
	return rows, issues
}

func channelField(signal edf.SignalHeader, recordDuration float64, field string) Value {
	switch field {
	case FieldLabel:
		return String(signal.Label)
	case FieldSampleRate:
		return Float(signal.SampleRate(recordDuration))
	case FieldDimension:
		return String(signal.Dimension)
	default:
		return Null()
	}
}
