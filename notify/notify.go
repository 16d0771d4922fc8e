// Package notify fans new-order alerts out to the browser and to external
// channels.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Alert struct {
	SessionID    string    `json:"sessionId"`
	RestaurantID string    `json:"restaurantId,omitempty"`
	OrderID      string    `json:"orderId,omitempty"`
	OrderCode    string    `json:"orderCode,omitempty"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Sound        bool      `json:"sound"`
	At           time.Time `json:"at"`
}

type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// FailureCounter is told about every failed delivery.
type FailureCounter interface {
	SinkFailed(sink string)
}

// Fanout delivers to every sink. A failing sink is logged and does not stop
// the others.
type Fanout struct {
	sinks    []Sink
	log      *zap.Logger
	failures FailureCounter
}

func NewFanout(log *zap.Logger, failures FailureCounter, sinks ...Sink) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{sinks: sinks, log: log.Named("notify"), failures: failures}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Send(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, a); err != nil {
			f.log.Warn("alert delivery failed",
				zap.String("sink", s.Name()),
				zap.String("session_id", a.SessionID),
				zap.String("order_id", a.OrderID),
				zap.Error(err),
			)
			if f.failures != nil {
				f.failures.SinkFailed(s.Name())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, a Alert) error {
	s.log.Info(a.Title,
		zap.String("message", a.Message),
		zap.String("session_id", a.SessionID),
		zap.String("restaurant_id", a.RestaurantID),
		zap.String("order_id", a.OrderID),
	)
	return nil
}
