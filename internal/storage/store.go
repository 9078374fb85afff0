// Package storage defines the storage-collaborator contract the core
// requires (spec §6): an ordered, transactional key-record store over
// watchers, snapshots, change logs, cookies, workflows, variables and
// workflow executions.
package storage

import (
	"context"
	"time"

	"github.com/GabriWar/vigilant/internal/models"
)

// ChangeLogFilter is the filter set changelog.list accepts (spec §6).
type ChangeLogFilter struct {
	WatcherID  int64
	ChangeType models.ChangeType
	DateFrom   *time.Time
	DateTo     *time.Time
	MinSize    *int
	MaxSize    *int
	Search     string // full-text search over diff bytes
	OrderBy    string // detected_at | new_size | change_type
	Direction  string // asc | desc
	Limit      int
	Offset     int
}

// WatcherStore persists Watcher rows.
type WatcherStore interface {
	Create(ctx context.Context, w *models.Watcher) error
	Get(ctx context.Context, id int64) (*models.Watcher, error)
	GetByName(ctx context.Context, name string) (*models.Watcher, error)
	Update(ctx context.Context, w *models.Watcher) error
	// UpdateTx is Update run against an open transaction (see
	// Transactor), so a watcher's counters can commit atomically with
	// the change-detection write they summarize (spec §4.4 step 6).
	UpdateTx(ctx context.Context, tx Tx, w *models.Watcher) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Watcher, error)
	// SchedulableWatchers returns active, scheduled-capable watchers
	// whose interval has elapsed as of now (spec §4.7).
	SchedulableWatchers(ctx context.Context, now time.Time) ([]*models.Watcher, error)
}

// SnapshotStore persists the single Snapshot per watcher.
type SnapshotStore interface {
	Get(ctx context.Context, watcherID int64) (*models.Snapshot, error)
	Put(ctx context.Context, s *models.Snapshot) error
	// PutTx is Put run against an open transaction (see Transactor).
	PutTx(ctx context.Context, tx Tx, s *models.Snapshot) error
	Delete(ctx context.Context, watcherID int64) error
}

// ChangeLogStore persists ChangeLog rows.
type ChangeLogStore interface {
	Create(ctx context.Context, c *models.ChangeLog) error
	// CreateTx is Create run against an open transaction (see
	// Transactor).
	CreateTx(ctx context.Context, tx Tx, c *models.ChangeLog) error
	List(ctx context.Context, f ChangeLogFilter) ([]*models.ChangeLog, error)
	Get(ctx context.Context, id int64) (*models.ChangeLog, error)
	DeleteByWatcher(ctx context.Context, watcherID int64) error
}

// CookieStore persists Cookie rows (backs C2).
type CookieStore interface {
	PutAll(ctx context.Context, watcherID int64, cookies []models.Cookie) error
	Get(ctx context.Context, watcherID int64) ([]models.Cookie, error)
	Expired(ctx context.Context, now time.Time) ([]models.Cookie, error)
	ExpiringWithin(ctx context.Context, now time.Time, d time.Duration) ([]models.Cookie, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	DeleteByWatcher(ctx context.Context, watcherID int64) error
}

// WorkflowStore persists Workflow rows.
type WorkflowStore interface {
	Create(ctx context.Context, w *models.Workflow) error
	Get(ctx context.Context, id int64) (*models.Workflow, error)
	GetByName(ctx context.Context, name string) (*models.Workflow, error)
	Update(ctx context.Context, w *models.Workflow) error
	// UpdateTx is Update run against an open transaction (see
	// Transactor), so the workflow's run counters commit atomically
	// with the execution record they summarize (spec §4.4 step 6).
	UpdateTx(ctx context.Context, tx Tx, w *models.Workflow) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Workflow, error)
	SchedulableWorkflows(ctx context.Context, now time.Time) ([]*models.Workflow, error)
}

// VariableStore persists Variable rows, scoped to a workflow.
type VariableStore interface {
	ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.Variable, error)
	Get(ctx context.Context, workflowID int64, name string) (*models.Variable, error)
	Upsert(ctx context.Context, v *models.Variable) error
	// UpsertTx is Upsert run against an open transaction (see
	// Transactor), so every variable a step extracts commits as one
	// unit (spec §4.4 step 6).
	UpsertTx(ctx context.Context, tx Tx, v *models.Variable) error
}

// ExecutionStore persists WorkflowExecution rows.
type ExecutionStore interface {
	Create(ctx context.Context, e *models.WorkflowExecution) error
	Update(ctx context.Context, e *models.WorkflowExecution) error
	// UpdateTx is Update run against an open transaction (see
	// Transactor).
	UpdateTx(ctx context.Context, tx Tx, e *models.WorkflowExecution) error
	Get(ctx context.Context, id int64) (*models.WorkflowExecution, error)
	HasRunning(ctx context.Context, workflowID int64) (bool, error)
	ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.WorkflowExecution, error)
}

// Tx is an open write transaction handed back from Transactor. Its
// concrete type is storage-engine-specific (the badger implementation
// asserts it back to *badger.Txn); callers only ever thread it through
// to the Tx-suffixed store methods.
type Tx interface{}

// Transactor groups the store writes belonging to one logical
// operation into a single atomic commit (spec §4.4 step 6, §5: "Each
// change-detection write (ChangeLog + Snapshot + watcher counters) is
// one transaction"). fn must only use the Tx-suffixed store methods
// against the tx it is given; returning an error rolls the whole
// transaction back.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Manager aggregates every entity store behind one handle, mirroring
// the "storage context" design note of spec §9 (an explicit interface
// passed into executors rather than a shared ORM session).
type Manager interface {
	Transactor
	Watchers() WatcherStore
	Snapshots() SnapshotStore
	ChangeLogs() ChangeLogStore
	Cookies() CookieStore
	Workflows() WorkflowStore
	Variables() VariableStore
	Executions() ExecutionStore
	Close() error
}
