package badger

import (
	"context"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/storage"
)

// storeManager implements storage.Manager over a single badger DB
// connection, mirroring the teacher's Manager pattern of owning one
// connection and handing out per-entity store handles.
type storeManager struct {
	db         *DB
	watchers   *WatcherStorage
	snapshots  *SnapshotStorage
	changelogs *ChangeLogStorage
	cookies    *CookieStorage
	workflows  *WorkflowStorage
	variables  *VariableStorage
	executions *ExecutionStorage
	logger     arbor.ILogger
}

// NewManager opens the badger database at cfg.Path and wires every
// entity store.
func NewManager(logger arbor.ILogger, cfg *common.StorageConfig) (storage.Manager, error) {
	db, err := Open(logger, cfg)
	if err != nil {
		return nil, err
	}

	m := &storeManager{
		db:         db,
		watchers:   NewWatcherStorage(db),
		snapshots:  NewSnapshotStorage(db),
		changelogs: NewChangeLogStorage(db),
		cookies:    NewCookieStorage(db),
		workflows:  NewWorkflowStorage(db),
		variables:  NewVariableStorage(db),
		executions: NewExecutionStorage(db),
		logger:     logger,
	}
	logger.Info().Msg("badger storage manager initialized")
	return m, nil
}

func (m *storeManager) Watchers() storage.WatcherStore     { return m.watchers }
func (m *storeManager) Snapshots() storage.SnapshotStore   { return m.snapshots }
func (m *storeManager) ChangeLogs() storage.ChangeLogStore { return m.changelogs }
func (m *storeManager) Cookies() storage.CookieStore       { return m.cookies }
func (m *storeManager) Workflows() storage.WorkflowStore   { return m.workflows }
func (m *storeManager) Variables() storage.VariableStore   { return m.variables }
func (m *storeManager) Executions() storage.ExecutionStore { return m.executions }
func (m *storeManager) Close() error                       { return m.db.Close() }

// WithTransaction runs fn against one badger read-write transaction,
// committing every Tx-suffixed store write fn performs as a single
// atomic unit (spec §4.4 step 6, §5). fn's error (or a failed commit)
// rolls the whole transaction back.
func (m *storeManager) WithTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return m.db.Badger().Update(func(txn *badgerv4.Txn) error {
		return fn(txn)
	})
}

// DeleteWatcher removes a watcher and cascades to its cookies,
// snapshot, and change logs, per spec §3's deletion invariant.
func DeleteWatcher(ctx context.Context, m storage.Manager, id int64) error {
	if err := m.Cookies().DeleteByWatcher(ctx, id); err != nil {
		return err
	}
	if err := m.Snapshots().Delete(ctx, id); err != nil {
		return err
	}
	if err := m.ChangeLogs().DeleteByWatcher(ctx, id); err != nil {
		return err
	}
	return m.Watchers().Delete(ctx, id)
}
