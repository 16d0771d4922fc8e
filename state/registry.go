package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Persister stores the encoded state of a session. LoadState returns
// ErrSessionNotFound when there is nothing stored.
type Persister interface {
	LoadState(ctx context.Context, sessionID string) ([]byte, error)
	SaveState(ctx context.Context, sessionID string, state []byte) error
}

type entry struct {
	store *Store
	saved uint64
}

// Registry keeps the live stores of all sessions and writes them back to the
// Persister when they change.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	persister Persister
	opts      []Option
	log       *zap.Logger
}

func NewRegistry(p Persister, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entries:   make(map[string]*entry),
		persister: p,
		opts:      opts,
		log:       log.Named("state"),
	}
}

// Create registers an empty store for a new session, replacing any previous
// one with the same ID.
func (r *Registry) Create(sessionID string) *Store {
	s := NewStore(sessionID, r.opts...)
	r.mu.Lock()
	r.entries[sessionID] = &entry{store: s}
	r.mu.Unlock()
	return s
}

// Get returns the live store of a session, restoring it from the Persister
// if this process has not seen it yet.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		r.mu.Unlock()
		return e.store, nil
	}
	r.mu.Unlock()

	if r.persister == nil {
		return nil, ErrSessionNotFound
	}
	data, err := r.persister.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s := NewStore(sessionID, r.opts...)
	if len(data) > 0 {
		if err := s.Restore(data); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		return e.store, nil
	}
	r.entries[sessionID] = &entry{store: s, saved: s.Version()}
	r.log.Debug("session restored", zap.String("session_id", sessionID))
	return s, nil
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Flush saves every store that changed since its last save.
func (r *Registry) Flush(ctx context.Context) error {
	var errs []error
	for _, id := range r.Sessions() {
		if err := r.FlushSession(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) FlushSession(ctx context.Context, sessionID string) error {
	if r.persister == nil {
		return nil
	}
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	v := e.store.Version()
	if v == e.saved {
		return nil
	}
	data, err := e.store.Marshal()
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sessionID, err)
	}
	if err := r.persister.SaveState(ctx, sessionID, data); err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}

	r.mu.Lock()
	if v > e.saved {
		e.saved = v
	}
	r.mu.Unlock()
	return nil
}
