package locations

import (
	"context"
	"errors"
	"sync"

	"dashboard/push"

	"go.uber.org/zap"
)

type SubscriberFactory func(token string) *push.Subscriber

// Registry runs one tracker per admin session.
type Registry struct {
	base    context.Context
	opts    Options
	factory SubscriberFactory

	mu       sync.Mutex
	trackers map[string]*running
}

type running struct {
	tracker *Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRegistry(ctx context.Context, opts Options, f SubscriberFactory) *Registry {
	return &Registry{base: ctx, opts: opts, factory: f, trackers: make(map[string]*running)}
}

func (r *Registry) Start(sessionID, token string) *Tracker {
	r.Stop(sessionID)

	t := NewTracker(r.factory(token), r.opts)
	ctx, cancel := context.WithCancel(r.base)
	run := &running{tracker: t, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.log.Warn("location channel stopped", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	r.mu.Lock()
	r.trackers[sessionID] = run
	r.mu.Unlock()
	return t
}

func (r *Registry) Get(sessionID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.trackers[sessionID]
	if !ok {
		return nil, false
	}
	return run.tracker, true
}

func (r *Registry) Stop(sessionID string) {
	r.mu.Lock()
	run := r.trackers[sessionID]
	delete(r.trackers, sessionID)
	r.mu.Unlock()
	if run != nil {
		run.cancel()
		<-run.done
	}
}

func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.trackers))
	for id := range r.trackers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Stop(id)
	}
}
