/*
Package history manages the per-source set of already-notified announcement
identifiers.
*/
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

type Manager struct {
	store Store
	seen  map[string]struct{}
	dirty bool
	mutex sync.Mutex
	log   zerolog.Logger
}

func NewManager(store Store, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		seen:  make(map[string]struct{}),
		log:   log,
	}
}

// Load replaces the in-memory set with the persisted one. Corrupt state is
// logged and treated as empty; any other store error is returned.
func (m *Manager) Load(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	seen, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptState) {
			return fmt.Errorf("failed to load seen-set: %w", err)
		}
		m.log.Warn().Err(err).Msg("seen-set state unreadable, starting fresh")
		seen = make(map[string]struct{})
	}
	m.seen = seen
	m.dirty = false
	m.log.Debug().Int("seen", len(seen)).Msg("loaded seen-set")
	return nil
}

func (m *Manager) Has(id string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.seen[id]
	return ok
}

func (m *Manager) Add(ids ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.seen[id]; !ok {
			m.seen[id] = struct{}{}
			m.dirty = true
		}
	}
}

func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.seen)
}

func (m *Manager) Sorted() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []string {
	ids := make([]string, 0, len(m.seen))
	for id := range m.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes the set back if anything was added since Load.
func (m *Manager) Save(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.dirty {
		return nil
	}
	if err := m.store.Save(ctx, m.sortedLocked()); err != nil {
		return fmt.Errorf("failed to save seen-set: %w", err)
	}
	m.dirty = false
	m.log.Debug().Int("seen", len(m.seen)).Msg("saved seen-set")
	return nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}
