package badger

import (
	"context"
	"fmt"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// WorkflowStorage implements storage.WorkflowStore.
type WorkflowStorage struct{ db *DB }

func NewWorkflowStorage(db *DB) *WorkflowStorage { return &WorkflowStorage{db: db} }

func (s *WorkflowStorage) Create(ctx context.Context, w *models.Workflow) error {
	if w.Name == "" {
		return errs.New(errs.Validation, "workflow.create", fmt.Errorf("name is required"))
	}
	if err := validateStepOrders(w.Steps); err != nil {
		return errs.New(errs.Validation, "workflow.create", err)
	}
	if existing, _ := s.GetByName(ctx, w.Name); existing != nil {
		return errs.New(errs.Conflict, "workflow.create", fmt.Errorf("workflow name %q already exists", w.Name))
	}

	id, err := s.db.nextID("workflow")
	if err != nil {
		return errs.New(errs.Storage, "workflow.create", err)
	}
	w.ID = id
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	if err := s.db.store.Insert(w.ID, w); err != nil {
		return errs.New(errs.Storage, "workflow.create", err)
	}
	return nil
}

// validateStepOrders checks spec §3's invariant: step Order values are
// unique and cover 1..N.
func validateStepOrders(steps []models.WorkflowStep) error {
	seen := make(map[int]bool, len(steps))
	for _, st := range steps {
		if st.Order < 1 || st.Order > len(steps) {
			return fmt.Errorf("step order %d out of range 1..%d", st.Order, len(steps))
		}
		if seen[st.Order] {
			return fmt.Errorf("duplicate step order %d", st.Order)
		}
		seen[st.Order] = true
	}
	return nil
}

func (s *WorkflowStorage) Get(ctx context.Context, id int64) (*models.Workflow, error) {
	var w models.Workflow
	if err := s.db.store.Get(id, &w); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.New(errs.NotFound, "workflow.get", err)
		}
		return nil, errs.New(errs.Storage, "workflow.get", err)
	}
	return &w, nil
}

func (s *WorkflowStorage) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	var ws []models.Workflow
	if err := s.db.store.Find(&ws, badgerhold.Where("Name").Eq(name)); err != nil {
		return nil, errs.New(errs.Storage, "workflow.getByName", err)
	}
	if len(ws) == 0 {
		return nil, errs.New(errs.NotFound, "workflow.getByName", fmt.Errorf("workflow %q not found", name))
	}
	return &ws[0], nil
}

func (s *WorkflowStorage) Update(ctx context.Context, w *models.Workflow) error {
	w.UpdatedAt = time.Now().UTC()
	if err := s.db.store.Update(w.ID, w); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "workflow.update", err)
		}
		return errs.New(errs.Storage, "workflow.update", err)
	}
	return nil
}

// UpdateTx is Update run against an open transaction (see
// storage.Transactor), so the workflow's run counters commit
// atomically with the execution record they summarize.
func (s *WorkflowStorage) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Workflow) error {
	w.UpdatedAt = time.Now().UTC()
	txn := tx.(*badgerv4.Txn)
	if err := s.db.store.TxUpdate(txn, w.ID, w); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "workflow.updateTx", err)
		}
		return errs.New(errs.Storage, "workflow.updateTx", err)
	}
	return nil
}

func (s *WorkflowStorage) Delete(ctx context.Context, id int64) error {
	if err := s.db.store.Delete(id, &models.Workflow{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "workflow.delete", err)
		}
		return errs.New(errs.Storage, "workflow.delete", err)
	}
	return nil
}

func (s *WorkflowStorage) List(ctx context.Context) ([]*models.Workflow, error) {
	var ws []models.Workflow
	if err := s.db.store.Find(&ws, badgerhold.Where("ID").Ge(int64(0)).SortBy("ID")); err != nil {
		return nil, errs.New(errs.Storage, "workflow.list", err)
	}
	out := make([]*models.Workflow, len(ws))
	for i := range ws {
		out[i] = &ws[i]
	}
	return out, nil
}

func (s *WorkflowStorage) SchedulableWorkflows(ctx context.Context, now time.Time) ([]*models.Workflow, error) {
	var ws []models.Workflow
	if err := s.db.store.Find(&ws, badgerhold.Where("ScheduleEnabled").Eq(true)); err != nil {
		return nil, errs.New(errs.Storage, "workflow.schedulable", err)
	}
	out := make([]*models.Workflow, 0, len(ws))
	for i := range ws {
		if ws[i].SchedulableNow(now) {
			out = append(out, &ws[i])
		}
	}
	return out, nil
}
