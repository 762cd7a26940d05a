// Package connection implements the database connection registry: a
// JSON-file backed store of connection records, a manager that caches live
// handles per record, and a connectivity tester.
package connection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"datachat/svcerr"
)

// Record is one saved database connection.
type Record struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"` // "mysql" (default) or "sqlite"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"` // for sqlite this is the file path
}

// Params are the caller-supplied fields for creating a record.
type Params struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Update carries partial-update fields; nil pointers leave the field as is.
type Update struct {
	Name     *string `json:"name,omitempty"`
	Type     *string `json:"type,omitempty"`
	Host     *string `json:"host,omitempty"`
	Port     *int    `json:"port,omitempty"`
	User     *string `json:"user,omitempty"`
	Password *string `json:"password,omitempty"`
	Database *string `json:"database,omitempty"`
}

// Store persists connection records to a JSON file. All mutations are
// write-through under a single mutex.
type Store struct {
	path    string
	mu      sync.Mutex
	records []Record
	loaded  bool
}

// NewStore creates a Store persisting to the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return
	}
	s.records = recs
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return svcerr.Wrap("connectionStore", "save", err)
		}
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return svcerr.Wrap("connectionStore", "save", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return svcerr.Wrap("connectionStore", "save", err)
	}
	return nil
}

// List returns all records.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Add creates a new record with a fresh id and persists it.
func (s *Store) Add(p Params) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	rec := Record{
		ID:       uuid.New().String()[:12],
		Name:     p.Name,
		Type:     p.Type,
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
	}
	s.records = append(s.records, rec)
	if err := s.save(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Apply merges the non-nil fields of u into the record with the given id
// and persists the result. Returns false if the id is unknown.
func (s *Store) Apply(id string, u Update) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		r := &s.records[i]
		if u.Name != nil {
			r.Name = *u.Name
		}
		if u.Type != nil {
			r.Type = *u.Type
		}
		if u.Host != nil {
			r.Host = *u.Host
		}
		if u.Port != nil {
			r.Port = *u.Port
		}
		if u.User != nil {
			r.User = *u.User
		}
		if u.Password != nil {
			r.Password = *u.Password
		}
		if u.Database != nil {
			r.Database = *u.Database
		}
		if err := s.save(); err != nil {
			return Record{}, false, err
		}
		return *r, true, nil
	}
	return Record{}, false, nil
}

// Remove deletes the record with the given id and persists the result.
// Returns false if the id is unknown.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			if err := s.save(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// SeedDefault creates an initial record from environment-derived defaults.
// It is a no-op unless the store is empty and both host and database are
// configured.
func (s *Store) SeedDefault(host string, port int, user, password, database string) (*Record, error) {
	s.mu.Lock()
	empty := func() bool {
		s.ensureLoaded()
		return len(s.records) == 0
	}()
	s.mu.Unlock()

	if !empty || host == "" || database == "" {
		return nil, nil
	}

	rec, err := s.Add(Params{
		Name:     fmt.Sprintf("默认连接 - %s", database),
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
