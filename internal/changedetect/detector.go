// Package changedetect implements C4: normalize a response body under
// a comparison mode, hash it, compare against the watcher's current
// snapshot, classify the result, and persist both the change log row
// and the updated snapshot. Grounded on the original vigilant
// backend's watcher.py normalize/hash/compare/diff flow, restructured
// into the teacher's one-Execute-method step shape
// (internal/jobs/executor).
package changedetect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// Result is what one Detect call classifies (spec §4.4).
type Result struct {
	ChangeType models.ChangeType
	ChangeLog  *models.ChangeLog
}

// Detector runs the normalize/hash/compare/diff pipeline against the
// snapshot and change-log stores.
type Detector struct {
	snapshots  storage.SnapshotStore
	changelogs storage.ChangeLogStore
	logger     arbor.ILogger
}

func New(snapshots storage.SnapshotStore, changelogs storage.ChangeLogStore, logger arbor.ILogger) *Detector {
	return &Detector{snapshots: snapshots, changelogs: changelogs, logger: logger}
}

// Detect classifies newBody against watcherID's current snapshot under
// mode, and persists the ChangeLog plus the (possibly unchanged)
// Snapshot as one atomic transaction (spec §4.4 step 6, §5: "Each
// change-detection write (ChangeLog + Snapshot + watcher counters) is
// one transaction"). Callers run Detect inside their own
// storage.Transactor.WithTransaction and fold their watcher-counter
// update into the same tx.
func (d *Detector) Detect(ctx context.Context, tx storage.Tx, watcherID int64, newBody []byte, contentType string, mode models.ComparisonMode) (*Result, error) {
	now := time.Now().UTC()

	canonicalNew := normalize(newBody, mode)
	newHash := hashBytes(canonicalNew)

	existing, err := d.snapshots.Get(ctx, watcherID)
	if err != nil {
		if kind, ok := errs.KindOf(err); !ok || kind != errs.NotFound {
			return nil, err
		}
		existing = nil
	}

	if existing == nil {
		log := &models.ChangeLog{
			WatcherID:  watcherID,
			ChangeType: models.ChangeNew,
			NewHash:    newHash,
			NewSize:    len(newBody),
			NewContent: newBody,
			DetectedAt: now,
		}
		if err := d.changelogs.CreateTx(ctx, tx, log); err != nil {
			return nil, err
		}
		snap := &models.Snapshot{
			WatcherID:   watcherID,
			Content:     newBody,
			ContentHash: newHash,
			ContentSize: len(newBody),
			ContentType: contentType,
			UpdatedAt:   now,
		}
		if err := d.snapshots.PutTx(ctx, tx, snap); err != nil {
			return nil, err
		}
		return &Result{ChangeType: models.ChangeNew, ChangeLog: log}, nil
	}

	canonicalOld := normalize(existing.Content, mode)
	oldCmp := hashBytes(canonicalOld)

	if oldCmp == newHash {
		oldSize := existing.ContentSize
		log := &models.ChangeLog{
			WatcherID:  watcherID,
			ChangeType: models.ChangeUnchanged,
			OldHash:    &oldCmp,
			NewHash:    newHash,
			OldSize:    &oldSize,
			NewSize:    len(newBody),
			DetectedAt: now,
		}
		if err := d.changelogs.CreateTx(ctx, tx, log); err != nil {
			return nil, err
		}
		existing.UpdatedAt = now
		if err := d.snapshots.PutTx(ctx, tx, existing); err != nil {
			return nil, err
		}
		return &Result{ChangeType: models.ChangeUnchanged, ChangeLog: log}, nil
	}

	oldHash := existing.ContentHash
	oldSize := existing.ContentSize
	log := &models.ChangeLog{
		WatcherID:  watcherID,
		ChangeType: models.ChangeModified,
		OldHash:    &oldHash,
		NewHash:    newHash,
		OldSize:    &oldSize,
		NewSize:    len(newBody),
		OldContent: existing.Content,
		NewContent: newBody,
		DetectedAt: now,
	}
	if mode != models.ComparisonDisabled {
		if diff, ok := unifiedDiff(existing.Content, newBody); ok {
			log.Diff = diff
		}
	}
	if err := d.changelogs.CreateTx(ctx, tx, log); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{
		WatcherID:   watcherID,
		Content:     newBody,
		ContentHash: newHash,
		ContentSize: len(newBody),
		ContentType: contentType,
		UpdatedAt:   now,
	}
	if err := d.snapshots.PutTx(ctx, tx, snap); err != nil {
		return nil, err
	}

	d.logger.Info().Int64("watcher_id", watcherID).Str("change_type", string(models.ChangeModified)).Msg("change detected")
	return &Result{ChangeType: models.ChangeModified, ChangeLog: log}, nil
}

// RecordError writes an error-kind change log for a watcher whose
// request itself failed (spec §4.4: "the executor writes an
// error-kind change log ... when the HTTP request itself fails").
func (d *Detector) RecordError(ctx context.Context, watcherID int64, message string) error {
	log := &models.ChangeLog{
		WatcherID:    watcherID,
		ChangeType:   models.ChangeError,
		ErrorMessage: message,
		DetectedAt:   time.Now().UTC(),
	}
	return d.changelogs.Create(ctx, log)
}

// normalize canonicalizes raw under mode (spec §4.4 step 1).
func normalize(raw []byte, mode models.ComparisonMode) []byte {
	if mode != models.ComparisonContentAware {
		return raw
	}
	if !utf8.Valid(raw) {
		return raw
	}
	collapsed := strings.Join(strings.Fields(string(raw)), " ")
	return []byte(collapsed)
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// unifiedDiff renders a unified line diff between old and new when
// both decode as UTF-8 text (spec §4.4 step 5); returns ok=false
// otherwise, leaving ChangeLog.Diff null.
func unifiedDiff(old, new []byte) ([]byte, bool) {
	if !utf8.Valid(old) || !utf8.Valid(new) {
		return nil, false
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(new)),
		FromFile: "old",
		ToFile:   "new",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, false
	}
	return []byte(text), true
}
