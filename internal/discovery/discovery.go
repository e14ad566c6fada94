// Package discovery determines which recordings still require anonymization.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"edfanon/internal/logging"
	"edfanon/internal/services/objectstore"
)

// Storage namespace prefixes. These are a bit-exact contract shared with the
// other deployments writing to the same buckets.
const (
	PersonalPrefix   = "edf_data/"
	StagingPrefix    = "edf_data_tmp/"
	AnonymizedPrefix = "edf_anonymized_data/"
	ReceivedPrefix   = "received/"
)

// Pending identifies one recording awaiting anonymization.
type Pending struct {
	// Key is the object key in the source store.
	Key string
	// Base is the key's base filename, used for local staging and for the
	// diff against already-anonymized outputs.
	Base string
}

// Discoverer lists pending work. It never decodes file contents.
type Discoverer struct {
	source      objectstore.Store
	destination objectstore.Store
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a Discoverer over the source and destination stores.
func New(source, destination objectstore.Store, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		source:      source,
		destination: destination,
		logger:      logging.NewComponentLogger(logger, "discovery"),
		now:         time.Now,
	}
}

// Diff returns the source recordings whose base filename does not yet appear
// among the anonymized outputs, in key order.
func (d *Discoverer) Diff(ctx context.Context) ([]Pending, error) {
	personal, err := d.source.List(ctx, PersonalPrefix)
	if err != nil {
		return nil, err
	}
	anonymized, err := d.destination.List(ctx, AnonymizedPrefix)
	if err != nil {
		return nil, err
	}

	done := make(map[string]struct{}, len(anonymized))
	for _, key := range anonymized {
		if base := path.Base(key); base != "." && base != "/" {
			done[base] = struct{}{}
		}
	}

	var pending []Pending
	for _, key := range personal {
		base, ok := directChild(key, PersonalPrefix)
		if !ok {
			continue
		}
		if _, ok := done[base]; ok {
			continue
		}
		pending = append(pending, Pending{Key: key, Base: base})
	}
	d.logger.Debug("diff discovery complete",
		logging.Int("personal", len(personal)),
		logging.Int("anonymized", len(anonymized)),
		logging.Int("pending", len(pending)),
	)
	return pending, nil
}

// Drain returns every recording under the staging prefix, in key order.
func (d *Discoverer) Drain(ctx context.Context) ([]Pending, error) {
	keys, err := d.source.List(ctx, StagingPrefix)
	if err != nil {
		return nil, err
	}
	pending := make([]Pending, 0, len(keys))
	for _, key := range keys {
		base, ok := directChild(key, StagingPrefix)
		if !ok {
			continue
		}
		pending = append(pending, Pending{Key: key, Base: base})
	}
	return pending, nil
}

// directChild returns the basename of a key sitting immediately under prefix.
// Discovery is confined to the namespace's top level; nested keys belong to
// other producers and are never picked up as work.
func directChild(key, prefix string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || rest == key || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// Receive moves a drained recording out of the staging namespace into the
// received namespace under a millisecond-timestamped name, so same-named
// files arriving at different times never collide. The store has no native
// rename, so this is a copy followed by a delete, in that order: a crash in
// between leaves a duplicate, never a loss.
func (d *Discoverer) Receive(ctx context.Context, item Pending) (string, error) {
	ext := path.Ext(item.Base)
	stem := strings.TrimSuffix(item.Base, ext)
	newKey := fmt.Sprintf("%s%s_%d%s", ReceivedPrefix, stem, d.now().UnixMilli(), ext)

	if err := d.source.Copy(ctx, item.Key, newKey); err != nil {
		return "", err
	}
	if err := d.source.Delete(ctx, item.Key); err != nil {
		return "", err
	}
	return newKey, nil
}
