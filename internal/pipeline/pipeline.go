package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"edfanon/internal/config"
	"edfanon/internal/discovery"
	"edfanon/internal/journal"
	"edfanon/internal/ledger"
	"edfanon/internal/logging"
	"edfanon/internal/metadata"
	"edfanon/internal/services"
	"edfanon/internal/services/objectstore"
	"edfanon/internal/staging"
)

// Ingestor writes long-format metadata records to the warehouse. A nil
// Ingestor disables warehouse ingestion for the run.
type Ingestor interface {
	Insert(ctx context.Context, records []metadata.Record) error
}

// Appender appends one entry to the identity-mapping ledger.
type Appender interface {
	Append(ctx context.Context, entry ledger.Entry) error
}

// Input carries the per-run subject attributes supplied by the uploader
// alongside the recordings. They are consumed for identity derivation only.
type Input struct {
	Name             string
	Surname          string
	BirthDate        string
	UniqueID         string
	MRN              string
	MetadataFileName string
}

// Summary reports a run's outcome. Failed counts recordings whose processing
// was isolated and skipped; callers treat Failed > 0 as partial success.
type Summary struct {
	RunID      string
	Discovered int
	Processed  int
	Failed     int
	Skipped    int
}

// Pipeline sequences discovery, anonymization, metadata extraction,
// ingestion, ledger updates, and publication for one run.
type Pipeline struct {
	cfg         *config.Config
	source      objectstore.Store
	destination objectstore.Store
	discoverer  *discovery.Discoverer
	ledger      Appender
	warehouse   Ingestor
	journal     *journal.Store
	logger      *slog.Logger
}

// New assembles a pipeline from its collaborators.
func New(cfg *config.Config, source, destination objectstore.Store, app Appender, sink Ingestor, store *journal.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		source:      source,
		destination: destination,
		discoverer:  discovery.New(source, destination, logger),
		ledger:      app,
		warehouse:   sink,
		journal:     store,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes one pipeline pass. Per-recording failures are isolated and
// counted; a discovery or publication failure aborts the run. The staging
// area is removed and the journal run is finished on every exit path.
func (p *Pipeline) Run(ctx context.Context, input Input) (summary Summary, err error) {
	summary.RunID = uuid.NewString()
	logger := p.logger.With(logging.String(logging.FieldRunID, summary.RunID))

	if err := p.journal.BeginRun(ctx, summary.RunID, p.cfg.Run.Mode); err != nil {
		return summary, fmt.Errorf("begin journal run: %w", err)
	}

	area := staging.New(p.cfg.Paths.StagingDir, logger)
	if err := area.Ensure(); err != nil {
		return summary, err
	}
	defer func() {
		// Cleanup is unconditional: staged personal data never outlives a
		// run, whatever the outcome.
		area.RemoveAll()
		if finishErr := p.journal.FinishRun(ctx, summary.RunID,
			summary.Discovered, summary.Processed, summary.Failed, summary.Skipped); finishErr != nil {
			logger.Warn("failed to finish journal run", logging.Error(finishErr))
		}
	}()

	pending, err := p.discover(ctx)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(pending)
	logger.Info("discovery complete",
		logging.Int("pending", len(pending)),
		logging.String("mode", p.cfg.Run.Mode),
	)

	for _, item := range pending {
		recLogger := logger.With(logging.String(logging.FieldRecording, item.Base))
		if !strings.EqualFold(path.Ext(item.Base), ".edf") {
			summary.Skipped++
			recLogger.Debug("skipping non-recording object", logging.String("key", item.Key))
			continue
		}
		recordingID, journalErr := p.journal.AddRecording(ctx, summary.RunID, item.Base)
		if journalErr != nil {
			return summary, fmt.Errorf("journal recording: %w", journalErr)
		}
		if err := p.processRecording(ctx, recLogger, area, item, input, recordingID); err != nil {
			summary.Failed++
			recLogger.Error("recording failed, continuing with remaining recordings",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldEventType, "recording_failed"),
			)
			if markErr := p.journal.MarkFailed(ctx, recordingID, err.Error()); markErr != nil {
				recLogger.Warn("failed to journal recording failure", logging.Error(markErr))
			}
			continue
		}
		summary.Processed++
	}

	if err := p.publish(ctx, logger, area); err != nil {
		return summary, err
	}

	logger.Info("run complete",
		logging.Int("discovered", summary.Discovered),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (p *Pipeline) discover(ctx context.Context) ([]discovery.Pending, error) {
	switch p.cfg.Run.Mode {
	case config.ModeDrain:
		return p.discoverer.Drain(ctx)
	default:
		return p.discoverer.Diff(ctx)
	}
}
