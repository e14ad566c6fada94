package discovery

import (
	"context"
	"testing"
	"time"

	"edfanon/internal/logging"
	"edfanon/internal/services/objectstore"
)

func TestDiffPendingIsSourceMinusAnonymizedBasenames(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()
	destination := objectstore.NewMemory()

	source.Seed("edf_data/a.edf", []byte("a"))
	source.Seed("edf_data/b.edf", []byte("b"))
	destination.Seed("edf_anonymized_data/a.edf", []byte("a"))

	pending, err := New(source, destination, logging.NewNop()).Diff(ctx)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "edf_data/b.edf" || pending[0].Base != "b.edf" {
		t.Fatalf("unexpected pending set %v", pending)
	}
}

func TestDiffMatchesByBasenameAcrossNamespaces(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()
	destination := objectstore.NewMemory()

	source.Seed("edf_data/xyz.edf", []byte("x"))
	destination.Seed("EEGs/edf/xyz.edf", []byte("x"))
	// The anonymized listing only covers the anonymized prefix, so a match in
	// a different namespace does not hide the file.
	pending, err := New(source, destination, logging.NewNop()).Diff(ctx)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("unexpected pending set %v", pending)
	}

	destination.Seed("edf_anonymized_data/deep/xyz.edf", []byte("x"))
	pending, err = New(source, destination, logging.NewNop()).Diff(ctx)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("basename match should hide the file, got %v", pending)
	}
}

func TestDiffConfinedToNamespaceTopLevel(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()

	source.Seed("edf_data/top.edf", []byte("t"))
	source.Seed("edf_data/sub/nested.edf", []byte("n"))
	source.Seed("edf_data/", []byte(""))

	pending, err := New(source, objectstore.NewMemory(), logging.NewNop()).Diff(ctx)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].Base != "top.edf" {
		t.Fatalf("expected only the top-level key, got %v", pending)
	}
}

func TestDrainReturnsEverything(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()
	source.Seed("edf_data_tmp/one.edf", []byte("1"))
	source.Seed("edf_data_tmp/two.edf", []byte("2"))
	source.Seed("edf_data_tmp/archive/old.edf", []byte("0"))
	source.Seed("edf_data/ignored.edf", []byte("3"))

	pending, err := New(source, objectstore.NewMemory(), logging.NewNop()).Drain(ctx)
	if err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if len(pending) != 2 || pending[0].Base != "one.edf" || pending[1].Base != "two.edf" {
		t.Fatalf("unexpected pending set %v", pending)
	}
}

func TestReceiveCopiesThenDeletes(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()
	source.Seed("edf_data_tmp/scan.edf", []byte("payload"))

	d := New(source, objectstore.NewMemory(), logging.NewNop())
	moment := time.UnixMilli(1714000000123)
	d.now = func() time.Time { return moment }

	newKey, err := d.Receive(ctx, Pending{Key: "edf_data_tmp/scan.edf", Base: "scan.edf"})
	if err != nil {
		t.Fatalf("Receive returned error: %v", err)
	}
	if newKey != "received/scan_1714000000123.edf" {
		t.Fatalf("unexpected received key %q", newKey)
	}

	body, err := source.Get(ctx, newKey)
	if err != nil || string(body) != "payload" {
		t.Fatalf("received object wrong: %q %v", body, err)
	}
	if ok, _ := source.Exists(ctx, "edf_data_tmp/scan.edf"); ok {
		t.Fatal("staged original should be deleted after copy")
	}
}

func TestReceiveKeepsOriginalWhenCopyFails(t *testing.T) {
	ctx := context.Background()
	source := objectstore.NewMemory()
	source.Seed("edf_data_tmp/scan.edf", []byte("payload"))
	source.FailOn = "received/"

	d := New(source, objectstore.NewMemory(), logging.NewNop())
	if _, err := d.Receive(ctx, Pending{Key: "edf_data_tmp/scan.edf", Base: "scan.edf"}); err == nil {
		t.Fatal("expected copy failure")
	}
	if ok, _ := source.Exists(ctx, "edf_data_tmp/scan.edf"); !ok {
		t.Fatal("original must survive a failed copy")
	}
}
