package poller

import (
	"context"
	"sync"

	"dashboard/push"
	"dashboard/state"
)

// PushFactory opens the real-time channel for a backend token. It may return
// nil when push is disabled.
type PushFactory func(token string) *push.Subscriber

// Manager owns the running pollers, one per manager session.
type Manager struct {
	base context.Context
	opts Options
	push PushFactory

	mu      sync.Mutex
	pollers map[string]*OrderPoller
}

func NewManager(ctx context.Context, opts Options, pf PushFactory) *Manager {
	return &Manager{
		base:    ctx,
		opts:    opts,
		push:    pf,
		pollers: make(map[string]*OrderPoller),
	}
}

// Start replaces any poller already running for the session.
func (m *Manager) Start(sessionID string, store *state.Store, source OrderSource) *OrderPoller {
	var sub *push.Subscriber
	if m.push != nil && source != nil {
		sub = m.push(source.Token())
	}
	p := New(store, source, sub, m.opts)

	m.mu.Lock()
	old := m.pollers[sessionID]
	m.pollers[sessionID] = p
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	p.Start(m.base)
	return p
}

func (m *Manager) Get(sessionID string) (*OrderPoller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pollers[sessionID]
	return p, ok
}

func (m *Manager) Stop(sessionID string) {
	m.mu.Lock()
	p := m.pollers[sessionID]
	delete(m.pollers, sessionID)
	m.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pollers)
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.pollers
	m.pollers = make(map[string]*OrderPoller)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range all {
		wg.Add(1)
		go func(p *OrderPoller) {
			defer wg.Done()
			p.Stop()
		}(p)
	}
	wg.Wait()
}
