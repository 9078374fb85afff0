package workflow

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

type fakeWorkflows struct{ rows map[int64]*models.Workflow }

func (f *fakeWorkflows) Create(ctx context.Context, w *models.Workflow) error { return nil }
func (f *fakeWorkflows) Get(ctx context.Context, id int64) (*models.Workflow, error) {
	return f.rows[id], nil
}
func (f *fakeWorkflows) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	return nil, errs.New(errs.NotFound, "workflow.getByName", nil)
}
func (f *fakeWorkflows) Update(ctx context.Context, w *models.Workflow) error {
	f.rows[w.ID] = w
	return nil
}
func (f *fakeWorkflows) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Workflow) error {
	return f.Update(ctx, w)
}
func (f *fakeWorkflows) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeWorkflows) List(ctx context.Context) ([]*models.Workflow, error) { return nil, nil }
func (f *fakeWorkflows) SchedulableWorkflows(ctx context.Context, now time.Time) ([]*models.Workflow, error) {
	return nil, nil
}

type fakeVariables struct{ rows map[string]*models.Variable }

func key(workflowID int64, name string) string {
	return fmt.Sprintf("%d:%s", workflowID, name)
}

func (f *fakeVariables) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.Variable, error) {
	var out []*models.Variable
	for _, v := range f.rows {
		if v.WorkflowID == workflowID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVariables) Get(ctx context.Context, workflowID int64, name string) (*models.Variable, error) {
	v, ok := f.rows[key(workflowID, name)]
	if !ok {
		return nil, errs.New(errs.NotFound, "variable.get", nil)
	}
	return v, nil
}

func (f *fakeVariables) Upsert(ctx context.Context, v *models.Variable) error {
	f.rows[key(v.WorkflowID, v.Name)] = v
	return nil
}

func (f *fakeVariables) UpsertTx(ctx context.Context, tx storage.Tx, v *models.Variable) error {
	return f.Upsert(ctx, v)
}

type fakeExecutions struct{ rows map[int64]*models.WorkflowExecution }

func (f *fakeExecutions) Create(ctx context.Context, e *models.WorkflowExecution) error {
	e.ID = int64(len(f.rows) + 1)
	f.rows[e.ID] = e
	return nil
}

func (f *fakeExecutions) Update(ctx context.Context, e *models.WorkflowExecution) error {
	f.rows[e.ID] = e
	return nil
}

func (f *fakeExecutions) UpdateTx(ctx context.Context, tx storage.Tx, e *models.WorkflowExecution) error {
	return f.Update(ctx, e)
}

func (f *fakeExecutions) Get(ctx context.Context, id int64) (*models.WorkflowExecution, error) {
	return f.rows[id], nil
}

func (f *fakeExecutions) HasRunning(ctx context.Context, workflowID int64) (bool, error) {
	for _, e := range f.rows {
		if e.WorkflowID == workflowID && e.Status == models.WorkflowRunning {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeExecutions) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.WorkflowExecution, error) {
	return nil, nil
}

type fakeWatchersForSteps struct{ rows map[int64]*models.Watcher }

func (f *fakeWatchersForSteps) Create(ctx context.Context, w *models.Watcher) error { return nil }
func (f *fakeWatchersForSteps) Get(ctx context.Context, id int64) (*models.Watcher, error) {
	w, ok := f.rows[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "watcher.get", nil)
	}
	return w, nil
}
func (f *fakeWatchersForSteps) GetByName(ctx context.Context, name string) (*models.Watcher, error) {
	return nil, errs.New(errs.NotFound, "watcher.getByName", nil)
}
func (f *fakeWatchersForSteps) Update(ctx context.Context, w *models.Watcher) error { return nil }
func (f *fakeWatchersForSteps) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Watcher) error {
	return nil
}
func (f *fakeWatchersForSteps) Delete(ctx context.Context, id int64) error          { return nil }
func (f *fakeWatchersForSteps) List(ctx context.Context) ([]*models.Watcher, error) { return nil, nil }
func (f *fakeWatchersForSteps) SchedulableWatchers(ctx context.Context, now time.Time) ([]*models.Watcher, error) {
	return nil, nil
}

// fakeTransactor runs fn directly: every fake store above ignores the
// tx argument and writes straight to its map, so there is nothing to
// actually commit or roll back in-process.
type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return fn(nil)
}

func newTestExecutor() (*Executor, *fakeWorkflows, *fakeVariables, *fakeWatchersForSteps) {
	workflows := &fakeWorkflows{rows: map[int64]*models.Workflow{}}
	vars := &fakeVariables{rows: map[string]*models.Variable{}}
	executions := &fakeExecutions{rows: map[int64]*models.WorkflowExecution{}}
	watchers := &fakeWatchersForSteps{rows: map[int64]*models.Watcher{}}
	client := httpclient.New(&common.HTTPConfig{TimeoutTotalSeconds: 5, TimeoutConnectSeconds: 5, TimeoutReadSeconds: 5, MaxRedirects: 10})
	logger := arbor.NewNoOpLogger()
	return New(workflows, vars, executions, watchers, client, fakeTransactor{}, logger), workflows, vars, watchers
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"abc123"}`))
	}))
	defer server.Close()

	executor, _, vars, watchers := newTestExecutor()
	watchers.rows[1] = &models.Watcher{ID: 1, URL: server.URL, Method: "GET"}
	watchers.rows[2] = &models.Watcher{ID: 2, URL: server.URL + "/[[token]]", Method: "GET"}

	vars.rows[key(1, "token")] = &models.Variable{WorkflowID: 1, Name: "token", Source: models.SourceResponseBody, ExtractMethod: models.ExtractJSONPath, Pattern: "token"}

	w := &models.Workflow{
		ID: 1,
		Steps: []models.WorkflowStep{
			{Order: 1, WatcherID: 1, ExtractVariables: []string{"token"}},
			{Order: 2, WatcherID: 2},
		},
	}

	execution, err := executor.Execute(context.Background(), w, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSuccess, execution.Status)
	assert.Equal(t, 2, execution.StepsCompleted)
	assert.Equal(t, "abc123", execution.VariablesExtracted["token"])
	assert.Equal(t, int64(1), w.ExecutionCount)
	assert.Equal(t, int64(1), w.SuccessCount)
}

func TestExecute_StepFailureWithoutContinueStopsEarly(t *testing.T) {
	executor, _, _, watchers := newTestExecutor()
	watchers.rows[1] = &models.Watcher{ID: 1, URL: "http://127.0.0.1:1", Method: "GET"}
	watchers.rows[2] = &models.Watcher{ID: 2, URL: "http://127.0.0.1:1", Method: "GET"}

	w := &models.Workflow{
		ID: 1,
		Steps: []models.WorkflowStep{
			{Order: 1, WatcherID: 1, ContinueOnError: false},
			{Order: 2, WatcherID: 2},
		},
	}

	execution, err := executor.Execute(context.Background(), w, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, execution.Status)
	assert.Equal(t, 1, execution.StepsCompleted, "step 2 never runs")
	assert.Equal(t, 1, execution.ErrorStep)
}

func TestExecute_PartialWhenContinueOnErrorAllowsLaterSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor, _, _, watchers := newTestExecutor()
	watchers.rows[1] = &models.Watcher{ID: 1, URL: "http://127.0.0.1:1", Method: "GET"}
	watchers.rows[2] = &models.Watcher{ID: 2, URL: server.URL, Method: "GET"}

	w := &models.Workflow{
		ID: 1,
		Steps: []models.WorkflowStep{
			{Order: 1, WatcherID: 1, ContinueOnError: true},
			{Order: 2, WatcherID: 2},
		},
	}

	execution, err := executor.Execute(context.Background(), w, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPartial, execution.Status)
	assert.Equal(t, 2, execution.StepsCompleted)
}

func TestExecute_OverrideVariableWinsOverStaticDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	executor, _, vars, watchers := newTestExecutor()
	watchers.rows[1] = &models.Watcher{ID: 1, URL: server.URL + "/[[env]]", Method: "GET"}
	vars.rows[key(1, "env")] = &models.Variable{WorkflowID: 1, Name: "env", Source: models.SourceStatic, StaticValue: "staging"}

	w := &models.Workflow{ID: 1, Steps: []models.WorkflowStep{{Order: 1, WatcherID: 1}}}

	execution, err := executor.Execute(context.Background(), w, map[string]string{"env": "production"})
	require.NoError(t, err)
	assert.Equal(t, "production", execution.VariablesExtracted["env"])
}
