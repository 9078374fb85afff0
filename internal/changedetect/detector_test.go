package changedetect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

type fakeSnapshots struct {
	rows map[int64]*models.Snapshot
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{rows: map[int64]*models.Snapshot{}}
}

func (f *fakeSnapshots) Get(ctx context.Context, watcherID int64) (*models.Snapshot, error) {
	s, ok := f.rows[watcherID]
	if !ok {
		return nil, errs.New(errs.NotFound, "snapshot.get", nil)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSnapshots) Put(ctx context.Context, s *models.Snapshot) error {
	cp := *s
	f.rows[s.WatcherID] = &cp
	return nil
}

func (f *fakeSnapshots) PutTx(ctx context.Context, tx storage.Tx, s *models.Snapshot) error {
	return f.Put(ctx, s)
}

func (f *fakeSnapshots) Delete(ctx context.Context, watcherID int64) error {
	delete(f.rows, watcherID)
	return nil
}

type fakeChangeLogs struct {
	rows []*models.ChangeLog
}

func (f *fakeChangeLogs) Create(ctx context.Context, c *models.ChangeLog) error {
	c.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, c)
	return nil
}

func (f *fakeChangeLogs) CreateTx(ctx context.Context, tx storage.Tx, c *models.ChangeLog) error {
	return f.Create(ctx, c)
}

func (f *fakeChangeLogs) Get(ctx context.Context, id int64) (*models.ChangeLog, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errs.New(errs.NotFound, "changelog.get", nil)
}

func (f *fakeChangeLogs) List(ctx context.Context, filter storage.ChangeLogFilter) ([]*models.ChangeLog, error) {
	return f.rows, nil
}

func (f *fakeChangeLogs) DeleteByWatcher(ctx context.Context, watcherID int64) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.WatcherID != watcherID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func newDetector() (*Detector, *fakeSnapshots, *fakeChangeLogs) {
	snaps := newFakeSnapshots()
	logs := &fakeChangeLogs{}
	return New(snaps, logs, arbor.NewNoOpLogger()), snaps, logs
}

func TestDetect_FirstObservationIsNew(t *testing.T) {
	d, _, logs := newDetector()
	result, err := d.Detect(context.Background(), nil, 1,[]byte("hello"), "text/plain", models.ComparisonHash)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeNew, result.ChangeType)
	require.Len(t, logs.rows, 1)
	assert.Equal(t, models.ChangeNew, logs.rows[0].ChangeType)
	assert.Nil(t, logs.rows[0].OldHash)
}

func TestDetect_SameContentIsUnchanged(t *testing.T) {
	d, _, logs := newDetector()
	ctx := context.Background()
	_, err := d.Detect(ctx, nil, 1,[]byte("hello"), "text/plain", models.ComparisonHash)
	require.NoError(t, err)

	result, err := d.Detect(ctx, nil, 1,[]byte("hello"), "text/plain", models.ComparisonHash)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeUnchanged, result.ChangeType)
	assert.Len(t, logs.rows, 2, "unchanged appends its own change log")
}

func TestDetect_DifferentContentIsModifiedWithDiff(t *testing.T) {
	d, snaps, logs := newDetector()
	ctx := context.Background()
	_, err := d.Detect(ctx, nil, 1,[]byte("line one\nline two\n"), "text/plain", models.ComparisonHash)
	require.NoError(t, err)

	result, err := d.Detect(ctx, nil, 1,[]byte("line one\nline changed\n"), "text/plain", models.ComparisonHash)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeModified, result.ChangeType)
	require.Len(t, logs.rows, 2)
	assert.NotEmpty(t, logs.rows[1].Diff)
	assert.Contains(t, string(logs.rows[1].Diff), "-line two")
	assert.Contains(t, string(logs.rows[1].Diff), "+line changed")

	snap, err := snaps.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline changed\n", string(snap.Content))
}

func TestDetect_DisabledModeSuppressesDiff(t *testing.T) {
	d, _, logs := newDetector()
	ctx := context.Background()
	_, err := d.Detect(ctx, nil, 1,[]byte("a"), "text/plain", models.ComparisonDisabled)
	require.NoError(t, err)
	_, err = d.Detect(ctx, nil, 1,[]byte("b"), "text/plain", models.ComparisonDisabled)
	require.NoError(t, err)
	require.Len(t, logs.rows, 2)
	assert.Empty(t, logs.rows[1].Diff)
}

func TestDetect_ContentAwareCollapsesWhitespace(t *testing.T) {
	d, _, logs := newDetector()
	ctx := context.Background()
	_, err := d.Detect(ctx, nil, 1,[]byte("hello   world"), "text/plain", models.ComparisonContentAware)
	require.NoError(t, err)

	result, err := d.Detect(ctx, nil, 1,[]byte("hello world"), "text/plain", models.ComparisonContentAware)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeUnchanged, result.ChangeType)
	assert.Len(t, logs.rows, 2)
}

func TestRecordError_WritesErrorChangeLog(t *testing.T) {
	d, _, logs := newDetector()
	err := d.RecordError(context.Background(), 1, "connection refused")
	require.NoError(t, err)
	require.Len(t, logs.rows, 1)
	assert.Equal(t, models.ChangeError, logs.rows[0].ChangeType)
	assert.Equal(t, "connection refused", logs.rows[0].ErrorMessage)
}

func TestUnifiedDiff_NonUTF8IsSkipped(t *testing.T) {
	_, ok := unifiedDiff([]byte{0xff, 0xfe}, []byte("valid"))
	assert.False(t, ok)
}
