// Package ledger maintains the durable mapping from anonymized filenames to
// subject identities and pseudonyms.
//
// Appending is a whole-object read-modify-write against the object store. A
// flock-guarded critical section enforces the single-writer invariant on one
// host; running concurrent pipelines against the same ledger from different
// hosts remains a deployment constraint.
package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"edfanon/internal/identity"
	"edfanon/internal/logging"
	"edfanon/internal/services"
	"edfanon/internal/services/objectstore"
)

// Key is the ledger's object key, part of the storage namespace contract.
const Key = "file_pid/filename_pid.csv"

const lockRetryDelay = 100 * time.Millisecond

func canonicalHeader() []string {
	return []string{"filename", "personal_id", "pseudoMRN", "MRN"}
}

// Entry is one appended mapping row.
type Entry struct {
	Filename  string
	SubjectID identity.SubjectID
	PseudoMRN identity.PseudoMRN
	MRN       string
}

// Ledger appends entries to the CSV ledger object.
type Ledger struct {
	store    objectstore.Store
	lockPath string
	logger   *slog.Logger
}

// New builds a ledger over the destination store. lockDir hosts the local
// lock file guarding the read-modify-write.
func New(store objectstore.Store, lockDir string, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		lockPath: filepath.Join(lockDir, "ledger.lock"),
		logger:   logging.NewComponentLogger(logger, "ledger"),
	}
}

// Append reads the full ledger, repairs its header if needed, adds the entry,
// and writes the whole object back. Rows are never removed or updated.
func (l *Ledger) Append(ctx context.Context, entry Entry) error {
	lock := flock.New(l.lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return services.Wrap(services.ErrStorage, "ledger", "lock", l.lockPath, err)
	}
	defer func() { _ = lock.Unlock() }()

	rows, err := l.readRows(ctx)
	if err != nil {
		return err
	}
	rows = repairHeader(rows)
	rows = append(rows, []string{entry.Filename, string(entry.SubjectID), string(entry.PseudoMRN), entry.MRN})

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return services.Wrap(services.ErrStorage, "ledger", "encode", Key, err)
	}
	if err := l.store.Put(ctx, Key, buf.Bytes(), "text/csv"); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) readRows(ctx context.Context) ([][]string, error) {
	exists, err := l.store.Exists(ctx, Key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	body, err := l.store.Get(ctx, Key)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		// Malformed content counts as zero pre-existing rows.
		l.logger.Warn("existing ledger content is malformed, starting from an empty ledger",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ledger_malformed"),
		)
		return nil, nil
	}
	return rows, nil
}

// repairHeader ensures the first row is the canonical column set. When any
// canonical column is missing from the observed header, the header row is
// replaced wholesale and existing data rows are kept as-is.
func repairHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return [][]string{canonicalHeader()}
	}
	observed := make(map[string]struct{}, len(rows[0]))
	for _, column := range rows[0] {
		observed[column] = struct{}{}
	}
	for _, column := range canonicalHeader() {
		if _, ok := observed[column]; !ok {
			rows[0] = canonicalHeader()
			break
		}
	}
	return rows
}
