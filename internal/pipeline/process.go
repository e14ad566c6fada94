package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"edfanon/internal/anonymizer"
	"edfanon/internal/config"
	"edfanon/internal/discovery"
	"edfanon/internal/edf"
	"edfanon/internal/identity"
	"edfanon/internal/ledger"
	"edfanon/internal/logging"
	"edfanon/internal/metadata"
	"edfanon/internal/staging"
)

// metadataFields are the per-channel attributes extracted for every recording.
var metadataFields = []string{
	metadata.FieldLabel,
	metadata.FieldSampleRate,
	metadata.FieldDimension,
}

// processRecording runs one recording through the full anonymization path:
// fetch, decode, identity derivation, metadata extraction, header redaction,
// warehouse ingestion, ledger append, and staged re-encode. Outputs land in
// the staging area only; publication happens after the loop so a half-run
// never leaves partial objects in the anonymized namespace.
func (p *Pipeline) processRecording(ctx context.Context, logger *slog.Logger, area *staging.Area, item discovery.Pending, input Input, recordingID int64) error {
	if err := p.journal.MarkProcessing(ctx, recordingID); err != nil {
		logger.Warn("failed to journal processing state", logging.Error(err))
	}

	body, err := p.source.Get(ctx, item.Key)
	if err != nil {
		return err
	}
	if _, err := area.Write(item.Base, body); err != nil {
		return err
	}

	rec, err := edf.Decode(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode %s: %w", item.Base, err)
	}

	attrs := identity.Attributes{
		Name:      input.Name,
		Surname:   input.Surname,
		BirthDate: input.BirthDate,
		UniqueID:  input.UniqueID,
	}
	if attrs.Empty() {
		logger.Warn("no subject attributes supplied, deriving degenerate subject identity",
			logging.String(logging.FieldEventType, "empty_identity"),
		)
	}
	subjectID := identity.DeriveSubjectID(attrs)
	pseudoMRN, hasMRN := identity.DerivePseudoMRN(input.MRN, p.cfg.Run.WorkspaceID)

	rows, issues := metadata.Extract(rec, metadataFields)
	for _, issue := range issues {
		logger.Warn("malformed filter annotation token, skipping",
			logging.Int("channel", issue.Channel),
			logging.String("label", issue.Label),
			logging.String("token", issue.Token),
		)
	}

	if err := anonymizer.Anonymize(rec.Header, p.cfg.Run.RedactFields, p.cfg.Run.RedactReplacements); err != nil {
		return err
	}

	docName := metadataDocName(input, item.Base)
	records := metadata.Normalize(rows, metadata.NormalizeParams{
		Source:           item.Base,
		WorkspaceID:      p.cfg.Run.WorkspaceID,
		PseudoMRN:        string(pseudoMRN),
		MetadataFileName: docName,
		RecordingFields: []metadata.ConstantField{
			{Name: "startdate_time", Value: metadata.String(rec.StartDateTime())},
			{Name: "file_duration", Value: metadata.Float(rec.FileDuration())},
			{Name: "personal_id", Value: metadata.String(string(subjectID))},
		},
	})

	if p.warehouse != nil {
		if err := p.warehouse.Insert(ctx, records); err != nil {
			return err
		}
		logger.Debug("metadata ingested", logging.Int("records", len(records)))
	}

	if err := p.ledger.Append(ctx, ledger.Entry{
		Filename:  item.Base,
		SubjectID: subjectID,
		PseudoMRN: pseudoMRN,
		MRN:       input.MRN,
	}); err != nil {
		return err
	}

	out, err := os.Create(area.AnonymizedPath(item.Base))
	if err != nil {
		return fmt.Errorf("create anonymized output: %w", err)
	}
	if err := rec.Encode(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode %s: %w", item.Base, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close anonymized output: %w", err)
	}

	if p.cfg.Run.ExportMetadata {
		doc, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal metadata document: %w", err)
		}
		if err := os.WriteFile(area.MetadataPath(docName), doc, 0o644); err != nil {
			return fmt.Errorf("stage metadata document: %w", err)
		}
	}

	if p.cfg.Run.Mode == config.ModeDrain {
		received, err := p.discoverer.Receive(ctx, item)
		if err != nil {
			return err
		}
		logger.Debug("recording received", logging.String("key", received))
	}

	if err := p.journal.MarkCompleted(ctx, recordingID, string(subjectID), string(pseudoMRN)); err != nil {
		logger.Warn("failed to journal completion", logging.Error(err))
	}
	logger.Info("recording anonymized",
		logging.Int("channels", len(rec.Signals)),
		logging.Bool("mrn_present", hasMRN),
		logging.String(logging.FieldEventType, "recording_completed"),
	)
	return nil
}

// metadataDocName picks the metadata document filename: the caller-supplied
// name when present, otherwise the recording stem with a .json extension.
func metadataDocName(input Input, base string) string {
	if name := strings.TrimSpace(input.MetadataFileName); name != "" {
		return name
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

// publish uploads every staged output to the destination store: anonymized
// recordings under their namespace and metadata documents under theirs.
// Publication is deliberately last so the anonymized namespace, which drives
// diff discovery, only ever gains fully processed recordings.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, area *staging.Area) error {
	anonymized, err := stagedFiles(area.AnonymizedDir())
	if err != nil {
		return err
	}
	for _, name := range anonymized {
		body, err := os.ReadFile(area.AnonymizedPath(name))
		if err != nil {
			return fmt.Errorf("read staged output %s: %w", name, err)
		}
		if err := p.destination.Put(ctx, discovery.AnonymizedPrefix+name, body, "application/octet-stream"); err != nil {
			return err
		}
		logger.Info("anonymized recording published",
			logging.String(logging.FieldRecording, name),
			logging.String(logging.FieldEventType, "recording_published"),
		)
	}

	docs, err := stagedFiles(area.MetadataDir())
	if err != nil {
		return err
	}
	for _, name := range docs {
		body, err := os.ReadFile(area.MetadataPath(name))
		if err != nil {
			return fmt.Errorf("read metadata document %s: %w", name, err)
		}
		if err := p.destination.Put(ctx, "metadata_files/"+name, body, "text/json"); err != nil {
			return err
		}
	}
	return nil
}

func stagedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read staging directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
