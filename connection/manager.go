package connection

import (
	"database/sql"
	"fmt"
	"sync"

	"datachat/dbpool"
	"datachat/svcerr"
)

// Manager wraps the Store with a cache of live database handles keyed by
// connection id. Mutating a record through the Manager invalidates its
// handle and notifies registered hooks (the agent state cache) before the
// mutation returns, so a stale handle or agent state is never observable
// after an update or delete.
type Manager struct {
	store  *Store
	dbm    *dbpool.DBManager
	logger func(string)

	mu      sync.Mutex
	handles map[string]*sql.DB
	hooks   []func(id string)
}

// NewManager creates a Manager over the given store.
func NewManager(store *Store, dbm *dbpool.DBManager, logger func(string)) *Manager {
	if logger == nil {
		logger = func(string) {}
	}
	return &Manager{
		store:   store,
		dbm:     dbm,
		logger:  logger,
		handles: make(map[string]*sql.DB),
	}
}

// Store exposes the underlying record store for read-only callers.
func (m *Manager) Store() *Store {
	return m.store
}

// OnInvalidate registers a hook called whenever a connection id is
// invalidated. Hooks run synchronously under the manager lock.
func (m *Manager) OnInvalidate(hook func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// EngineFor returns the dbpool engine for a record.
func EngineFor(rec Record) dbpool.Engine {
	if rec.Type == "sqlite" {
		return dbpool.EngineSQLite
	}
	return dbpool.EngineMySQL
}

// DSNFor returns the driver connection string for a record.
func DSNFor(rec Record) string {
	if EngineFor(rec) == dbpool.EngineSQLite {
		return rec.Database
	}
	return dbpool.BuildMySQLDSN(rec.Host, rec.Port, rec.User, rec.Password, rec.Database)
}

// Handle returns a cached live handle for the connection id, opening one
// on first use. The handle stays cached until the record is updated or
// deleted.
func (m *Manager) Handle(id string) (*sql.DB, *dbpool.Dialect, error) {
	rec, ok := m.store.Get(id)
	if !ok {
		return nil, nil, svcerr.NotFound("connection", id)
	}

	m.mu.Lock()
	db, cached := m.handles[id]
	m.mu.Unlock()
	if cached {
		return db, dbpool.NewDialect(EngineFor(rec)), nil
	}

	db, err := m.dbm.Open(dbpool.OpenOptions{Engine: EngineFor(rec), DSN: DSNFor(rec)})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", svcerr.ErrConnectivity, err)
	}

	m.mu.Lock()
	// Another turn may have raced us; keep the first handle.
	if existing, ok := m.handles[id]; ok {
		m.mu.Unlock()
		db.Close()
		return existing, dbpool.NewDialect(EngineFor(rec)), nil
	}
	m.handles[id] = db
	m.mu.Unlock()

	return db, dbpool.NewDialect(EngineFor(rec)), nil
}

// OpenFresh opens a short-lived handle for one tool call. The caller must
// close it. Tool calls use fresh handles so concurrent turns don't
// serialize on a shared cursor.
func (m *Manager) OpenFresh(id string) (*sql.DB, *dbpool.Dialect, error) {
	rec, ok := m.store.Get(id)
	if !ok {
		return nil, nil, svcerr.NotFound("connection", id)
	}
	db, err := m.dbm.Open(dbpool.OpenOptions{Engine: EngineFor(rec), DSN: DSNFor(rec), MaxRetries: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", svcerr.ErrConnectivity, err)
	}
	return db, dbpool.NewDialect(EngineFor(rec)), nil
}

// Update applies a partial update through the store and invalidates the
// cached handle and agent state for the id.
func (m *Manager) Update(id string, u Update) (Record, bool, error) {
	rec, ok, err := m.store.Apply(id, u)
	if err != nil || !ok {
		return Record{}, ok, err
	}
	m.invalidate(id)
	return rec, true, nil
}

// Delete removes the record and invalidates the cached handle and agent
// state for the id.
func (m *Manager) Delete(id string) (bool, error) {
	ok, err := m.store.Remove(id)
	if err != nil || !ok {
		return ok, err
	}
	m.invalidate(id)
	return true, nil
}

func (m *Manager) invalidate(id string) {
	m.mu.Lock()
	if db, ok := m.handles[id]; ok {
		db.Close()
		delete(m.handles, id)
	}
	hooks := make([]func(string), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(id)
	}
	m.logger(fmt.Sprintf("[CONN] invalidated connection %s", id))
}

// Close closes all cached handles.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, db := range m.handles {
		db.Close()
		delete(m.handles, id)
	}
}
