package metadata

import "sort"

// Record is one long-format row: a single (channel, attribute) observation
// tagged with its provenance and identity columns.
type Record struct {
	Source           string
	RowID            int
	Variable         string
	Value            string
	WorkspaceID      string
	PseudoMRN        string
	MetadataFileName string
}

// ConstantField is a recording-level attribute broadcast onto every channel
// row before the reshape.
type ConstantField struct {
	Name  string
	Value Value
}

// NormalizeParams carries the identifiers attached to every output record.
type NormalizeParams struct {
	Source           string
	WorkspaceID      string
	PseudoMRN        string
	MetadataFileName string
	RecordingFields  []ConstantField
}

// Normalize reshapes wide per-channel rows into long form keyed on
// (source, rowid). The column set is the union across all rows, so a channel
// lacking an annotation another channel has still emits a null record for it.
// Recording-level fields are prepended to each row, every non-key cell
// becomes one (variable, value) record, values are coerced to text, and the
// result is sorted by rowid ascending, stable with respect to attribute
// order. The output holds one record per cell: row count times union column
// count, no information lost beyond the text coercion.
func Normalize(rows []Row, p NormalizeParams) []Record {
	columns := unionColumns(rows)
	records := make([]Record, 0, len(rows)*(len(p.RecordingFields)+len(columns)))

	for i, row := range rows {
		rowID := i + 1
		emit := func(variable string, value Value) {
			records = append(records, Record{
				Source:           p.Source,
				RowID:            rowID,
				Variable:         variable,
				Value:            value.Text(),
				WorkspaceID:      p.WorkspaceID,
				PseudoMRN:        p.PseudoMRN,
				MetadataFileName: p.MetadataFileName,
			})
		}
		for _, field := range p.RecordingFields {
			emit(field.Name, field.Value)
		}
		for _, column := range columns {
			emit(column, row.Get(column))
		}
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].RowID < records[b].RowID
	})
	return records
}

// unionColumns merges every row's columns in first-seen order: requested
// fields come first (all rows carry them in the same order), then annotation
// keys as they appear across channels.
func unionColumns(rows []Row) []string {
	var columns []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, column := range row.Columns() {
			if _, ok := seen[column]; ok {
				continue
			}
			seen[column] = struct{}{}
			columns = append(columns, column)
		}
	}
	return columns
}
