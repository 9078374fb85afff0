package badger

import (
	"context"
	"fmt"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// VariableStorage implements storage.VariableStore.
type VariableStorage struct{ db *DB }

func NewVariableStorage(db *DB) *VariableStorage { return &VariableStorage{db: db} }

func (s *VariableStorage) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.Variable, error) {
	var rows []models.Variable
	if err := s.db.store.Find(&rows, badgerhold.Where("WorkflowID").Eq(workflowID)); err != nil {
		return nil, errs.New(errs.Storage, "variable.listByWorkflow", err)
	}
	out := make([]*models.Variable, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *VariableStorage) Get(ctx context.Context, workflowID int64, name string) (*models.Variable, error) {
	var rows []models.Variable
	q := badgerhold.Where("WorkflowID").Eq(workflowID).And("Name").Eq(name)
	if err := s.db.store.Find(&rows, q); err != nil {
		return nil, errs.New(errs.Storage, "variable.get", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "variable.get", fmt.Errorf("variable %q not found in workflow %d", name, workflowID))
	}
	return &rows[0], nil
}

// Upsert validates Name's grammar and (workflow_id, name) uniqueness
// (spec §3), then inserts or updates v in place.
func (s *VariableStorage) Upsert(ctx context.Context, v *models.Variable) error {
	if !models.VariableNamePattern.MatchString(v.Name) {
		return errs.New(errs.Validation, "variable.upsert", fmt.Errorf("invalid variable name %q", v.Name))
	}

	existing, err := s.Get(ctx, v.WorkflowID, v.Name)
	if err == nil {
		v.ID = existing.ID
		if err := s.db.store.Update(v.ID, v); err != nil {
			return errs.New(errs.Storage, "variable.upsert", err)
		}
		return nil
	}

	id, err := s.db.nextID("variable")
	if err != nil {
		return errs.New(errs.Storage, "variable.upsert", err)
	}
	v.ID = id
	if err := s.db.store.Insert(v.ID, v); err != nil {
		return errs.New(errs.Storage, "variable.upsert", err)
	}
	return nil
}

// UpsertTx is Upsert run against an open transaction (see
// storage.Transactor), so every variable one step extracts commits as
// one unit: the existing-row lookup and the resulting insert/update
// all read and write through the same tx.
func (s *VariableStorage) UpsertTx(ctx context.Context, tx storage.Tx, v *models.Variable) error {
	if !models.VariableNamePattern.MatchString(v.Name) {
		return errs.New(errs.Validation, "variable.upsertTx", fmt.Errorf("invalid variable name %q", v.Name))
	}

	txn := tx.(*badgerv4.Txn)
	var existing []models.Variable
	q := badgerhold.Where("WorkflowID").Eq(v.WorkflowID).And("Name").Eq(v.Name)
	if err := s.db.store.TxFind(txn, &existing, q); err != nil {
		return errs.New(errs.Storage, "variable.upsertTx", err)
	}
	if len(existing) > 0 {
		v.ID = existing[0].ID
		if err := s.db.store.TxUpdate(txn, v.ID, v); err != nil {
			return errs.New(errs.Storage, "variable.upsertTx", err)
		}
		return nil
	}

	id, err := s.db.nextID("variable")
	if err != nil {
		return errs.New(errs.Storage, "variable.upsertTx", err)
	}
	v.ID = id
	if err := s.db.store.TxInsert(txn, v.ID, v); err != nil {
		return errs.New(errs.Storage, "variable.upsertTx", err)
	}
	return nil
}
