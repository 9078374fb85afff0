package badger

import (
	"context"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// ExecutionStorage implements storage.ExecutionStore.
type ExecutionStorage struct{ db *DB }

func NewExecutionStorage(db *DB) *ExecutionStorage { return &ExecutionStorage{db: db} }

func (s *ExecutionStorage) Create(ctx context.Context, e *models.WorkflowExecution) error {
	id, err := s.db.nextID("execution")
	if err != nil {
		return errs.New(errs.Storage, "execution.create", err)
	}
	e.ID = id
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	if err := s.db.store.Insert(e.ID, e); err != nil {
		return errs.New(errs.Storage, "execution.create", err)
	}
	return nil
}

func (s *ExecutionStorage) Update(ctx context.Context, e *models.WorkflowExecution) error {
	if err := s.db.store.Update(e.ID, e); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "execution.update", err)
		}
		return errs.New(errs.Storage, "execution.update", err)
	}
	return nil
}

// UpdateTx is Update run against an open transaction (see
// storage.Transactor), so the execution record commits atomically
// with the workflow counters it feeds into.
func (s *ExecutionStorage) UpdateTx(ctx context.Context, tx storage.Tx, e *models.WorkflowExecution) error {
	txn := tx.(*badgerv4.Txn)
	if err := s.db.store.TxUpdate(txn, e.ID, e); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "execution.updateTx", err)
		}
		return errs.New(errs.Storage, "execution.updateTx", err)
	}
	return nil
}

func (s *ExecutionStorage) Get(ctx context.Context, id int64) (*models.WorkflowExecution, error) {
	var e models.WorkflowExecution
	if err := s.db.store.Get(id, &e); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.New(errs.NotFound, "execution.get", err)
		}
		return nil, errs.New(errs.Storage, "execution.get", err)
	}
	return &e, nil
}

// HasRunning reports whether workflowID has an execution with
// status=running, used to skip dispatch of an already-running
// workflow (spec §5: "two concurrent executions ... are not
// permitted").
func (s *ExecutionStorage) HasRunning(ctx context.Context, workflowID int64) (bool, error) {
	var rows []models.WorkflowExecution
	q := badgerhold.Where("WorkflowID").Eq(workflowID).And("Status").Eq(models.WorkflowRunning)
	if err := s.db.store.Find(&rows, q); err != nil {
		return false, errs.New(errs.Storage, "execution.hasRunning", err)
	}
	return len(rows) > 0, nil
}

func (s *ExecutionStorage) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.WorkflowExecution, error) {
	var rows []models.WorkflowExecution
	q := badgerhold.Where("WorkflowID").Eq(workflowID).SortBy("StartedAt").Reverse()
	if err := s.db.store.Find(&rows, q); err != nil {
		return nil, errs.New(errs.Storage, "execution.listByWorkflow", err)
	}
	out := make([]*models.WorkflowExecution, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
