// Package push subscribes to the marketplace's real-time channel. Frames are
// JSON objects of the form {"event": "...", "data": ...} in both directions.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventNewOrder           = "newOrder"
	EventLocationUpdate     = "deliveryLocationUpdate"
	EventErrorMessage       = "errorMessage"
	EventMessage            = "message"
	EventRequestAllLocation = "adminRequestAllLocations"
)

var ErrNotConnected = errors.New("push: not connected")

type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("push: event %q has no data", e.Name)
	}
	return json.Unmarshal(e.Data, v)
}

type Conn interface {
	Receive() (Event, error)
	Send(Event) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Emitter interface {
	Emit(event string, data any) error
}

// Handler receives the lifecycle of a subscription. Calls are made from the
// goroutine running Subscriber.Run, one at a time.
type Handler interface {
	Connected(e Emitter)
	Handle(ev Event)
	Disconnected(err error)
}

type Options struct {
	Attempts    int
	Delay       time.Duration
	Logger      *zap.Logger
	OnReconnect func()
}

type Subscriber struct {
	dialer      Dialer
	attempts    int
	delay       time.Duration
	log         *zap.Logger
	onReconnect func()

	mu   sync.Mutex
	conn Conn
}

func NewSubscriber(d Dialer, opts Options) *Subscriber {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	if opts.OnReconnect == nil {
		opts.OnReconnect = func() {}
	}
	return &Subscriber{
		dialer:      d,
		attempts:    opts.Attempts,
		delay:       opts.Delay,
		log:         opts.Logger,
		onReconnect: opts.OnReconnect,
	}
}

// Run keeps a connection open until ctx is done. Consecutive failed dials are
// capped at the configured number of attempts; a successful connection resets
// the count. It returns ctx.Err() on cancellation.
func (s *Subscriber) Run(ctx context.Context, h Handler) error {
	failures := 0
	for {
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			s.log.Warn("push dial failed", zap.Int("attempt", failures), zap.Error(err))
			h.Disconnected(err)
			if s.attempts > 0 && failures >= s.attempts {
				return fmt.Errorf("push: giving up after %d attempts: %w", failures, err)
			}
			if !sleep(ctx, s.delay) {
				return ctx.Err()
			}
			s.onReconnect()
			continue
		}

		failures = 0
		s.setConn(conn)
		h.Connected(s)

		err = s.readLoop(ctx, conn, h)

		s.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Info("push connection lost", zap.Error(err))
		h.Disconnected(err)
		if !sleep(ctx, s.delay) {
			return ctx.Err()
		}
		s.onReconnect()
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn Conn, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		ev, err := conn.Receive()
		if err != nil {
			return err
		}
		if ev.Name == "" {
			continue
		}
		h.Handle(ev)
	}
}

func (s *Subscriber) Emit(event string, data any) error {
	ev := Event{Name: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("push: encoding %s: %w", event, err)
		}
		ev.Data = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.Send(ev)
}

func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) setConn(c Conn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
