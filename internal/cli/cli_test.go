package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/changedetect"
	"github.com/GabriWar/vigilant/internal/changelog"
	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/cookies"
	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/watcher"
	"github.com/GabriWar/vigilant/internal/workflow"
)

type fakeWatcherStore struct {
	rows map[int64]*models.Watcher
}

func (f *fakeWatcherStore) Create(ctx context.Context, w *models.Watcher) error { return nil }
func (f *fakeWatcherStore) Get(ctx context.Context, id int64) (*models.Watcher, error) {
	if w, ok := f.rows[id]; ok {
		return w, nil
	}
	return nil, errs.New(errs.NotFound, "watcher.get", nil)
}
func (f *fakeWatcherStore) GetByName(ctx context.Context, name string) (*models.Watcher, error) {
	return nil, errs.New(errs.NotFound, "watcher.getByName", nil)
}
func (f *fakeWatcherStore) Update(ctx context.Context, w *models.Watcher) error { return nil }
func (f *fakeWatcherStore) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Watcher) error {
	return nil
}
func (f *fakeWatcherStore) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeWatcherStore) List(ctx context.Context) ([]*models.Watcher, error) { return nil, nil }
func (f *fakeWatcherStore) SchedulableWatchers(ctx context.Context, now time.Time) ([]*models.Watcher, error) {
	return nil, nil
}

type fakeWorkflowStore struct {
	rows map[int64]*models.Workflow
}

func (f *fakeWorkflowStore) Create(ctx context.Context, w *models.Workflow) error { return nil }
func (f *fakeWorkflowStore) Get(ctx context.Context, id int64) (*models.Workflow, error) {
	if w, ok := f.rows[id]; ok {
		return w, nil
	}
	return nil, errs.New(errs.NotFound, "workflow.get", nil)
}
func (f *fakeWorkflowStore) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	return nil, errs.New(errs.NotFound, "workflow.getByName", nil)
}
func (f *fakeWorkflowStore) Update(ctx context.Context, w *models.Workflow) error { return nil }
func (f *fakeWorkflowStore) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Workflow) error {
	return nil
}
func (f *fakeWorkflowStore) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeWorkflowStore) List(ctx context.Context) ([]*models.Workflow, error) { return nil, nil }
func (f *fakeWorkflowStore) SchedulableWorkflows(ctx context.Context, now time.Time) ([]*models.Workflow, error) {
	return nil, nil
}

type fakeSnapshotStore struct{}

func (f *fakeSnapshotStore) Get(ctx context.Context, watcherID int64) (*models.Snapshot, error) {
	return nil, errs.New(errs.NotFound, "snapshot.get", nil)
}
func (f *fakeSnapshotStore) Put(ctx context.Context, s *models.Snapshot) error { return nil }
func (f *fakeSnapshotStore) PutTx(ctx context.Context, tx storage.Tx, s *models.Snapshot) error {
	return nil
}
func (f *fakeSnapshotStore) Delete(ctx context.Context, watcherID int64) error { return nil }

type fakeChangeLogStore struct {
	rows []*models.ChangeLog
}

func (f *fakeChangeLogStore) Create(ctx context.Context, c *models.ChangeLog) error { return nil }
func (f *fakeChangeLogStore) CreateTx(ctx context.Context, tx storage.Tx, c *models.ChangeLog) error {
	return nil
}
func (f *fakeChangeLogStore) Get(ctx context.Context, id int64) (*models.ChangeLog, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errs.New(errs.NotFound, "changelog.get", nil)
}
func (f *fakeChangeLogStore) List(ctx context.Context, filter storage.ChangeLogFilter) ([]*models.ChangeLog, error) {
	return f.rows, nil
}
func (f *fakeChangeLogStore) DeleteByWatcher(ctx context.Context, watcherID int64) error { return nil }

type fakeCookieStore struct{}

func (f *fakeCookieStore) PutAll(ctx context.Context, watcherID int64, cookies []models.Cookie) error {
	return nil
}
func (f *fakeCookieStore) Get(ctx context.Context, watcherID int64) ([]models.Cookie, error) {
	return nil, nil
}
func (f *fakeCookieStore) Expired(ctx context.Context, now time.Time) ([]models.Cookie, error) {
	return nil, nil
}
func (f *fakeCookieStore) ExpiringWithin(ctx context.Context, now time.Time, d time.Duration) ([]models.Cookie, error) {
	return nil, nil
}
func (f *fakeCookieStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
func (f *fakeCookieStore) DeleteByWatcher(ctx context.Context, watcherID int64) error { return nil }

type fakeVariableStore struct{}

func (f *fakeVariableStore) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.Variable, error) {
	return nil, nil
}
func (f *fakeVariableStore) Get(ctx context.Context, workflowID int64, name string) (*models.Variable, error) {
	return nil, errs.New(errs.NotFound, "variable.get", nil)
}
func (f *fakeVariableStore) Upsert(ctx context.Context, v *models.Variable) error { return nil }
func (f *fakeVariableStore) UpsertTx(ctx context.Context, tx storage.Tx, v *models.Variable) error {
	return nil
}

type fakeExecutionStore struct{}

func (f *fakeExecutionStore) Create(ctx context.Context, e *models.WorkflowExecution) error {
	return nil
}
func (f *fakeExecutionStore) Update(ctx context.Context, e *models.WorkflowExecution) error {
	return nil
}
func (f *fakeExecutionStore) UpdateTx(ctx context.Context, tx storage.Tx, e *models.WorkflowExecution) error {
	return nil
}
func (f *fakeExecutionStore) Get(ctx context.Context, id int64) (*models.WorkflowExecution, error) {
	return nil, errs.New(errs.NotFound, "execution.get", nil)
}
func (f *fakeExecutionStore) HasRunning(ctx context.Context, workflowID int64) (bool, error) {
	return false, nil
}
func (f *fakeExecutionStore) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.WorkflowExecution, error) {
	return nil, nil
}

type fakeManager struct {
	watchers   *fakeWatcherStore
	workflows  *fakeWorkflowStore
	changelogs *fakeChangeLogStore
}

func (m *fakeManager) Watchers() storage.WatcherStore     { return m.watchers }
func (m *fakeManager) Snapshots() storage.SnapshotStore   { return &fakeSnapshotStore{} }
func (m *fakeManager) ChangeLogs() storage.ChangeLogStore { return m.changelogs }
func (m *fakeManager) Cookies() storage.CookieStore       { return &fakeCookieStore{} }
func (m *fakeManager) Workflows() storage.WorkflowStore   { return m.workflows }
func (m *fakeManager) Variables() storage.VariableStore   { return &fakeVariableStore{} }
func (m *fakeManager) Executions() storage.ExecutionStore { return &fakeExecutionStore{} }
func (m *fakeManager) Close() error                       { return nil }
func (m *fakeManager) WithTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return fn(nil)
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func TestRunWatcher_PrintsChangeResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer server.Close()

	manager := &fakeManager{watchers: &fakeWatcherStore{rows: map[int64]*models.Watcher{
		1: {ID: 1, Name: "w1", URL: server.URL, Method: "GET", ComparisonMode: models.ComparisonHash},
	}}}
	client := httpclient.New(&common.HTTPConfig{TimeoutTotalSeconds: 5, TimeoutConnectSeconds: 5, TimeoutReadSeconds: 5})
	detector := changedetect.New(&fakeSnapshotStore{}, &fakeChangeLogStore{}, arbor.NewNoOpLogger())
	watcherExec := watcher.New(manager.watchers, cookies.New(&fakeCookieStore{}, arbor.NewNoOpLogger()), client, detector, manager, arbor.NewNoOpLogger())

	cmd, buf := newTestCmd()
	err := runWatcher(cmd, manager, watcherExec, 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "watcher 1")
	assert.Contains(t, buf.String(), "change=new")
}

func TestRunWatcher_UnknownID(t *testing.T) {
	manager := &fakeManager{watchers: &fakeWatcherStore{rows: map[int64]*models.Watcher{}}}
	client := httpclient.New(&common.HTTPConfig{TimeoutTotalSeconds: 5, TimeoutConnectSeconds: 5, TimeoutReadSeconds: 5})
	detector := changedetect.New(&fakeSnapshotStore{}, &fakeChangeLogStore{}, arbor.NewNoOpLogger())
	watcherExec := watcher.New(manager.watchers, cookies.New(&fakeCookieStore{}, arbor.NewNoOpLogger()), client, detector, manager, arbor.NewNoOpLogger())

	cmd, _ := newTestCmd()
	err := runWatcher(cmd, manager, watcherExec, 99)
	require.Error(t, err)
}

func TestDryRunWatcher_DoesNotPersistChangeDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	manager := &fakeManager{watchers: &fakeWatcherStore{rows: map[int64]*models.Watcher{
		1: {ID: 1, Name: "w1", URL: server.URL, Method: "POST"},
	}}}
	client := httpclient.New(&common.HTTPConfig{TimeoutTotalSeconds: 5, TimeoutConnectSeconds: 5, TimeoutReadSeconds: 5})
	detector := changedetect.New(&fakeSnapshotStore{}, &fakeChangeLogStore{}, arbor.NewNoOpLogger())
	watcherExec := watcher.New(manager.watchers, cookies.New(&fakeCookieStore{}, arbor.NewNoOpLogger()), client, detector, manager, arbor.NewNoOpLogger())

	cmd, buf := newTestCmd()
	err := dryRunWatcher(cmd, manager, watcherExec, 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "http=201")
	assert.Contains(t, buf.String(), "size=7")
}

func TestExecuteWorkflow_ReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	watchers := &fakeWatcherStore{rows: map[int64]*models.Watcher{
		1: {ID: 1, Name: "step1", URL: server.URL, Method: "GET"},
	}}
	workflows := &fakeWorkflowStore{rows: map[int64]*models.Workflow{
		1: {ID: 1, Name: "wf1", Steps: []models.WorkflowStep{{Order: 1, WatcherID: 1}}},
	}}
	manager := &fakeManager{watchers: watchers, workflows: workflows}
	client := httpclient.New(&common.HTTPConfig{TimeoutTotalSeconds: 5, TimeoutConnectSeconds: 5, TimeoutReadSeconds: 5})
	workflowExec := workflow.New(workflows, &fakeVariableStore{}, &fakeExecutionStore{}, watchers, client, manager, arbor.NewNoOpLogger())

	cmd, buf := newTestCmd()
	err := executeWorkflow(cmd, manager, workflowExec, 1, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "workflow 1")
	assert.Contains(t, buf.String(), "status=success")
}

func TestParseOverrideVariables(t *testing.T) {
	overrides, err := parseOverrideVariables([]string{"api_key=abc123", "env=staging"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", overrides["api_key"])
	assert.Equal(t, "staging", overrides["env"])

	_, err = parseOverrideVariables([]string{"missing-equals"})
	require.Error(t, err)
}

func TestListChangelogs_PrintsEachRow(t *testing.T) {
	store := &fakeChangeLogStore{rows: []*models.ChangeLog{
		{ID: 1, WatcherID: 1, ChangeType: models.ChangeNew, NewSize: 10, DetectedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := changelog.New(store)

	cmd, buf := newTestCmd()
	err := listChangelogs(cmd, svc, storage.ChangeLogFilter{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "#1 watcher=1")
}

func TestCompareChangelogs_RejectsOutOfRangeCount(t *testing.T) {
	svc := changelog.New(&fakeChangeLogStore{})
	cmd, _ := newTestCmd()
	err := compareChangelogs(cmd, svc, []int64{1})
	require.Error(t, err)
}

func TestStatsChangelogs_PrintsJSON(t *testing.T) {
	store := &fakeChangeLogStore{rows: []*models.ChangeLog{
		{ID: 1, WatcherID: 1, ChangeType: models.ChangeNew, NewSize: 10, DetectedAt: time.Now()},
	}}
	svc := changelog.New(store)

	cmd, buf := newTestCmd()
	err := statsChangelogs(cmd, svc, nil, changelog.GroupByDay)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "TotalsByType")
}
