package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// Session is the authenticated identity of this terminal.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool { return s.Token != "" }

// Store persists the session across restarts. Load on an empty store returns
// the zero Session and no error.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
	Close() error
}

var (
	_ Store = (*BadgerStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// ---------------------------------------------------------------------------
// Badger
// ---------------------------------------------------------------------------

var sessionKey = []byte("session/current")

// BadgerStore keeps the session in a local Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the session database at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("session: dir is required")
	}
	return openBadger(badger.DefaultOptions(dir))
}

// OpenBadgerInMemory opens a non-persistent Badger database.
func OpenBadgerInMemory() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns the stored session.
func (s *BadgerStore) Load() (Session, error) {
	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return Session{}, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// Save replaces the stored session.
func (s *BadgerStore) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey, data)
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *BadgerStore) Clear() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

// MemoryStore keeps the session for the life of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	sess Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *MemoryStore) Save(sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = Session{}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
