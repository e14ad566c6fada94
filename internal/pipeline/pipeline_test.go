package pipeline_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"edfanon/internal/config"
	"edfanon/internal/discovery"
	"edfanon/internal/edf"
	"edfanon/internal/journal"
	"edfanon/internal/ledger"
	"edfanon/internal/logging"
	"edfanon/internal/metadata"
	"edfanon/internal/pipeline"
	"edfanon/internal/services/objectstore"
	"edfanon/internal/testsupport"
)

type fixture struct {
	cfg         *config.Config
	source      *objectstore.Memory
	destination *objectstore.Memory
	journal     *journal.Store
	pipe        *pipeline.Pipeline
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	return newFixtureWithIngestor(t, nil, opts...)
}

func newFixtureWithIngestor(t *testing.T, sink pipeline.Ingestor, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	source := objectstore.NewMemory()
	destination := objectstore.NewMemory()
	logger := logging.NewNop()

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ldg := ledger.New(destination, t.TempDir(), logger)
	pipe := pipeline.New(cfg, source, destination, ldg, sink, store, logger)
	return &fixture{cfg: cfg, source: source, destination: destination, journal: store, pipe: pipe}
}

type captureIngestor struct {
	inserts [][]metadata.Record
	err     error
}

func (c *captureIngestor) Insert(_ context.Context, records []metadata.Record) error {
	if c.err != nil {
		return c.err
	}
	c.inserts = append(c.inserts, records)
	return nil
}

func seedRecording(t *testing.T, store *objectstore.Memory, key string) {
	t.Helper()
	store.Seed(key, testsupport.BuildEDF(t, testsupport.EDFOptions{
		PatientField:   "PAT-42 M 04-Mar-1951 Haagse_Harry",
		RecordingField: "Startdate 04-MAR-2021 PSG-1234 Tech_AB EEG32",
	}))
}

func TestRunAnonymizesAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-01.edf")

	summary, err := f.pipe.Run(ctx, pipeline.Input{
		Name:      "Harry",
		Surname:   "Haagse",
		BirthDate: "04-Mar-1951",
		MRN:       "MRN-007",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Discovered != 1 || summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	body, err := f.destination.Get(ctx, discovery.AnonymizedPrefix+"sub-01.edf")
	if err != nil {
		t.Fatalf("anonymized output missing: %v", err)
	}
	rec, err := edf.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("published output does not decode: %v", err)
	}
	if got := rec.Header[edf.KeyPatientName]; got != "X" {
		t.Fatalf("patient name not redacted, got %q", got)
	}
	if got := rec.Header[edf.KeyBirthdate]; got != "X" {
		t.Fatalf("birthdate not redacted, got %q", got)
	}
	if got := rec.Header[edf.KeyPatientCode]; got != "PAT-42" {
		t.Fatalf("patient code should survive redaction, got %q", got)
	}
}

func TestRunAppendsLedgerEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-01.edf")

	if _, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry", MRN: "MRN-007"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	body, err := f.destination.Get(ctx, ledger.Key)
	if err != nil {
		t.Fatalf("ledger missing: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("ledger does not parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one entry, got %d rows", len(rows))
	}
	if rows[1][0] != "sub-01.edf" {
		t.Fatalf("unexpected ledger filename %q", rows[1][0])
	}
	if rows[1][3] != "MRN-007" {
		t.Fatalf("unexpected ledger MRN %q", rows[1][3])
	}
	if len(rows[1][1]) != 64 || len(rows[1][2]) != 64 {
		t.Fatalf("expected hex digests in ledger row, got %v", rows[1])
	}
}

func TestRunIsolatesFailedRecordings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRecording(t, f.source, discovery.PersonalPrefix+"good.edf")
	f.source.Seed(discovery.PersonalPrefix+"bad.edf", []byte("not an edf container"))

	summary, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if ok, _ := f.destination.Exists(ctx, discovery.AnonymizedPrefix+"good.edf"); !ok {
		t.Fatal("healthy recording should still be published")
	}
	if ok, _ := f.destination.Exists(ctx, discovery.AnonymizedPrefix+"bad.edf"); ok {
		t.Fatal("failed recording must not be published")
	}

	recordings, err := f.journal.List(ctx, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	var failed *journal.Recording
	for i := range recordings {
		if recordings[i].Filename == "bad.edf" {
			failed = &recordings[i]
		}
	}
	if failed == nil || failed.Status != journal.StatusFailed || failed.ErrorMessage == "" {
		t.Fatalf("expected journaled failure for bad.edf, got %+v", failed)
	}
}

func TestRunSkipsAlreadyAnonymized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRecording(t, f.source, discovery.PersonalPrefix+"done.edf")
	seedRecording(t, f.source, discovery.PersonalPrefix+"new.edf")
	f.destination.Seed(discovery.AnonymizedPrefix+"done.edf", []byte("previous output"))

	summary, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Discovered != 1 || summary.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if body, _ := f.destination.Get(ctx, discovery.AnonymizedPrefix+"done.edf"); string(body) != "previous output" {
		t.Fatal("already-anonymized output must not be rewritten")
	}
}

func TestRunSkipsNonRecordingObjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.Seed(discovery.PersonalPrefix+"notes.txt", []byte("hello"))

	summary, err := f.pipe.Run(ctx, pipeline.Input{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestDrainModeReceivesOriginals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testsupport.WithMode(config.ModeDrain))
	seedRecording(t, f.source, discovery.StagingPrefix+"sub-02.edf")

	summary, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if remaining, _ := f.source.List(ctx, discovery.StagingPrefix); len(remaining) != 0 {
		t.Fatalf("staging namespace should be drained, still holds %v", remaining)
	}
	received, err := f.source.List(ctx, discovery.ReceivedPrefix)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(received) != 1 || !strings.HasPrefix(received[0], discovery.ReceivedPrefix+"sub-02_") {
		t.Fatalf("expected timestamped received copy, got %v", received)
	}
	if ok, _ := f.destination.Exists(ctx, discovery.AnonymizedPrefix+"sub-02.edf"); !ok {
		t.Fatal("drained recording should be published")
	}
}

func TestRunExportsMetadataDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *config.Config) { c.Run.ExportMetadata = true })
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-03.edf")

	if _, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry", MRN: "MRN-1"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	body, err := f.destination.Get(ctx, "metadata_files/sub-03.json")
	if err != nil {
		t.Fatalf("metadata document missing: %v", err)
	}
	if got := f.destination.ContentType("metadata_files/sub-03.json"); got != "text/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	var records []metadata.Record
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("metadata document does not parse: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected at least one metadata record")
	}
	variables := make(map[string]bool)
	for _, record := range records {
		variables[record.Variable] = true
		if record.Source != "sub-03.edf" {
			t.Fatalf("unexpected record source %q", record.Source)
		}
		if record.WorkspaceID != f.cfg.Run.WorkspaceID {
			t.Fatalf("unexpected workspace %q", record.WorkspaceID)
		}
	}
	for _, want := range []string{"label", "sample_rate", "dimension", "startdate_time", "file_duration", "personal_id"} {
		if !variables[want] {
			t.Fatalf("metadata document missing variable %q (have %v)", want, variables)
		}
	}
}

func TestRunIngestsMetadataRecords(t *testing.T) {
	ctx := context.Background()
	sink := &captureIngestor{}
	f := newFixtureWithIngestor(t, sink)
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-01.edf")

	if _, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry", MRN: "MRN-1"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(sink.inserts) != 1 {
		t.Fatalf("expected one insert per recording, got %d", len(sink.inserts))
	}
	records := sink.inserts[0]
	// One channel x (3 requested fields + HP + LP + 3 recording constants).
	if len(records) != 8 {
		t.Fatalf("expected 8 records, got %d: %+v", len(records), records)
	}
	for _, record := range records {
		if record.Source != "sub-01.edf" {
			t.Fatalf("unexpected record source %q", record.Source)
		}
		if record.WorkspaceID != f.cfg.Run.WorkspaceID {
			t.Fatalf("unexpected workspace %q", record.WorkspaceID)
		}
		if len(record.PseudoMRN) != 64 {
			t.Fatalf("expected pseudonym digest on every record, got %q", record.PseudoMRN)
		}
	}
}

func TestRunIsolatesIngestionFailure(t *testing.T) {
	ctx := context.Background()
	sink := &captureIngestor{err: errors.New("connection refused")}
	f := newFixtureWithIngestor(t, sink)
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-01.edf")

	summary, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if ok, _ := f.destination.Exists(ctx, discovery.AnonymizedPrefix+"sub-01.edf"); ok {
		t.Fatal("recording must not be published when ingestion fails")
	}
	if ok, _ := f.destination.Exists(ctx, ledger.Key); ok {
		t.Fatal("ledger must not gain an entry when ingestion fails")
	}
}

func TestRunRemovesStagingArea(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRecording(t, f.source, discovery.PersonalPrefix+"sub-01.edf")

	if _, err := f.pipe.Run(ctx, pipeline.Input{Name: "Harry"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, err := os.Stat(f.cfg.Paths.StagingDir); !os.IsNotExist(err) {
		t.Fatalf("staging area should be removed after the run, stat err %v", err)
	}
}

func TestRunFinishesJournalOnDiscoveryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.FailOn = discovery.PersonalPrefix

	summary, err := f.pipe.Run(ctx, pipeline.Input{})
	if err == nil {
		t.Fatal("expected discovery failure to surface")
	}

	runs, jerr := f.journal.RecentRuns(ctx, 5)
	if jerr != nil {
		t.Fatalf("RecentRuns returned error: %v", jerr)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Fatalf("expected the failed run to be journaled, got %+v", runs)
	}
	if runs[0].FinishedAt == nil {
		t.Fatal("run must be finished even when discovery fails")
	}
}

func TestRunPreservesSignalData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	original := testsupport.BuildEDF(t, testsupport.EDFOptions{
		PatientField: "PAT-9 F 02-Aug-1984 Ada_L",
		Channels: []testsupport.Channel{{
			Label:            "EEG Pz-Oz",
			Dimension:        "uV",
			Prefilter:        "HP:0.1Hz LP:75Hz",
			SamplesPerRecord: 3,
			Samples:          []int16{11, -22, 33},
		}},
	})
	f.source.Seed(discovery.PersonalPrefix+"sig.edf", original)

	if _, err := f.pipe.Run(ctx, pipeline.Input{Name: "Ada"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	body, err := f.destination.Get(ctx, discovery.AnonymizedPrefix+"sig.edf")
	if err != nil {
		t.Fatalf("anonymized output missing: %v", err)
	}
	rec, err := edf.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("published output does not decode: %v", err)
	}
	if !bytes.Equal(rec.Records(), original[len(original)-len(rec.Records()):]) {
		t.Fatal("signal data must pass through byte-identical")
	}
}
