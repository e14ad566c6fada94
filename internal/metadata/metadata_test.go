package metadata_test

import (
	"bytes"
	"testing"

	"edfanon/internal/edf"
	"edfanon/internal/metadata"
	"edfanon/internal/testsupport"
)

func fixtureRecording(t *testing.T, channels []testsupport.Channel) *edf.Recording {
	t.Helper()
	raw := testsupport.BuildEDF(t, testsupport.EDFOptions{Channels: channels})
	rec, err := edf.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return rec
}

func allFields() []string {
	return []string{metadata.FieldLabel, metadata.FieldSampleRate, metadata.FieldDimension}
}

func TestExtractOneRowPerChannel(t *testing.T) {
	rec := fixtureRecording(t, []testsupport.Channel{
		{Label: "EEG Fpz-Cz", Dimension: "uV", Prefilter: "HP:0.1Hz LP:75Hz", SamplesPerRecord: 4},
		{Label: "EEG Pz-Oz", Dimension: "uV", Prefilter: "N:50Hz", SamplesPerRecord: 2},
		{Label: "Body temp", Dimension: "degC", SamplesPerRecord: 1},
	})

	rows, issues := metadata.Extract(rec, allFields())
	if len(issues) != 0 {
		t.Fatalf("unexpected parse issues %v", issues)
	}
	if len(rows) != len(rec.Signals) {
		t.Fatalf("got %d rows for %d channels", len(rows), len(rec.Signals))
	}

	if got := rows[0].Get(metadata.FieldLabel).Text(); got != "EEG Fpz-Cz" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := rows[0].Get(metadata.FieldSampleRate).Text(); got != "4" {
		t.Fatalf("unexpected sample rate %q", got)
	}
	if got := rows[0].Get("HP").Text(); got != "0.1Hz" {
		t.Fatalf("unexpected HP token %q", got)
	}
	if got := rows[1].Get("N").Text(); got != "50Hz" {
		t.Fatalf("unexpected N token %q", got)
	}
	// Channel without a filter annotation gains no extra keys.
	if got := len(rows[2].Columns()); got != len(allFields()) {
		t.Fatalf("expected %d columns, got %d", len(allFields()), got)
	}
}

func TestExtractReportsMalformedTokens(t *testing.T) {
	rec := fixtureRecording(t, []testsupport.Channel{
		{Label: "EEG C3", Dimension: "uV", Prefilter: "HP:0.1Hz broken :58Hz", SamplesPerRecord: 2},
	})

	rows, issues := metadata.Extract(rec, allFields())
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	for _, issue := range issues {
		if issue.Channel != 0 || issue.Label != "EEG C3" {
			t.Fatalf("issue misattributed: %+v", issue)
		}
	}
	if _, want := rows[0].Get("HP"), "0.1Hz"; rows[0].Get("HP").Text() != want {
		t.Fatalf("well-formed token lost: %q", rows[0].Get("HP").Text())
	}
	if got := len(rows[0].Columns()); got != len(allFields())+1 {
		t.Fatalf("malformed tokens must be excluded, got %d columns", got)
	}
}

func TestExtractUnknownFieldIsNull(t *testing.T) {
	rec := fixtureRecording(t, nil)
	rows, _ := metadata.Extract(rec, []string{metadata.FieldLabel, "transducer_serial"})
	if rows[0].Get("transducer_serial").Kind != metadata.KindNull {
		t.Fatal("unknown field must extract as null")
	}
}

func TestNormalizePreservesCellCount(t *testing.T) {
	rec := fixtureRecording(t, []testsupport.Channel{
		{Label: "EEG Fpz-Cz", Dimension: "uV", Prefilter: "HP:0.1Hz", SamplesPerRecord: 4},
		{Label: "EEG Pz-Oz", Dimension: "uV", Prefilter: "LP:75Hz", SamplesPerRecord: 2},
	})
	rows, _ := metadata.Extract(rec, allFields())

	params := metadata.NormalizeParams{
		Source:      "sub-001.edf",
		WorkspaceID: "ws-1",
		PseudoMRN:   "abc123",
		RecordingFields: []metadata.ConstantField{
			{Name: "startdate_time", Value: metadata.String(rec.StartDateTime())},
			{Name: "file_duration", Value: metadata.Float(rec.FileDuration())},
		},
	}
	records := metadata.Normalize(rows, params)

	// Non-key columns are the union across channels: the requested fields
	// plus HP and LP, even though each channel only carries one of the two.
	perRow := len(allFields()) + 2 + len(params.RecordingFields)
	if want := len(rows) * perRow; len(records) != want {
		t.Fatalf("got %d records, want %d", len(records), want)
	}
	for _, record := range records {
		if record.Source != "sub-001.edf" || record.WorkspaceID != "ws-1" || record.PseudoMRN != "abc123" {
			t.Fatalf("constant columns missing: %+v", record)
		}
	}
}

func TestNormalizeBroadcastsColumnUnion(t *testing.T) {
	rec := fixtureRecording(t, []testsupport.Channel{
		{Label: "EEG Fpz-Cz", Dimension: "uV", Prefilter: "HP:0.1Hz", SamplesPerRecord: 4},
		{Label: "Body temp", Dimension: "degC", SamplesPerRecord: 1},
	})
	rows, _ := metadata.Extract(rec, allFields())
	records := metadata.Normalize(rows, metadata.NormalizeParams{Source: "s.edf"})

	// 2 channels x (label, sample_rate, dimension, HP).
	if want := 2 * 4; len(records) != want {
		t.Fatalf("got %d records, want channels x union columns = %d", len(records), want)
	}

	byRow := make(map[int]map[string]string)
	for _, record := range records {
		if byRow[record.RowID] == nil {
			byRow[record.RowID] = make(map[string]string)
		}
		byRow[record.RowID][record.Variable] = record.Value
	}
	if got, ok := byRow[1]["HP"]; !ok || got != "0.1Hz" {
		t.Fatalf("channel with annotation lost its value: %v", byRow[1])
	}
	// The channel without the annotation still carries the variable, as null.
	if got, ok := byRow[2]["HP"]; !ok || got != "" {
		t.Fatalf("expected null HP record for second channel, got %q (present %v)", got, ok)
	}
}

func TestNormalizeSortsByRowID(t *testing.T) {
	rec := fixtureRecording(t, []testsupport.Channel{
		{Label: "A", Dimension: "uV", SamplesPerRecord: 1},
		{Label: "B", Dimension: "uV", SamplesPerRecord: 1},
		{Label: "C", Dimension: "uV", SamplesPerRecord: 1},
	})
	rows, _ := metadata.Extract(rec, []string{metadata.FieldLabel, metadata.FieldDimension})
	records := metadata.Normalize(rows, metadata.NormalizeParams{Source: "s.edf"})

	lastRow := 0
	for _, record := range records {
		if record.RowID < lastRow {
			t.Fatalf("records not sorted by rowid: %+v", records)
		}
		lastRow = record.RowID
	}
	// Stable attribute order within a row.
	if records[0].Variable != metadata.FieldLabel || records[1].Variable != metadata.FieldDimension {
		t.Fatalf("per-row attribute order not preserved: %v %v", records[0].Variable, records[1].Variable)
	}
	if records[0].RowID != 1 || records[len(records)-1].RowID != 3 {
		t.Fatalf("rowid range wrong: first %d last %d", records[0].RowID, records[len(records)-1].RowID)
	}
}

func TestValueCoercion(t *testing.T) {
	if metadata.Null().Text() != "" {
		t.Fatal("null must coerce to empty string")
	}
	if metadata.Float(256).Text() != "256" {
		t.Fatalf("unexpected float text %q", metadata.Float(256).Text())
	}
	if metadata.Int(-3).Text() != "-3" {
		t.Fatalf("unexpected int text %q", metadata.Int(-3).Text())
	}
}
