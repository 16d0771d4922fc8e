// Package poller keeps a manager session's order list fresh and raises an
// alert whenever a new order reaches the top of it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dashboard/backend"
	"dashboard/model"
	"dashboard/notify"
	"dashboard/push"
	"dashboard/state"

	"go.uber.org/zap"
)

const (
	DefaultMinFetchInterval = 3 * time.Second
	DefaultPollInterval     = 30 * time.Second
	DefaultAlertDuration    = 5 * time.Second

	alertSendTimeout = 10 * time.Second
)

const (
	msgFetchFailed    = "Failed to fetch orders"
	msgAuthFailed     = "Authentication failed. Please log in again."
	msgConnectionLost = "Failed to get orders. Please check your connection."
)

var ErrThrottled = errors.New("poller: orders were fetched less than the minimum interval ago")

type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerLogin  Trigger = "login"
	TriggerPoll   Trigger = "poll"
	TriggerPush   Trigger = "push"
)

// OrderSource is the slice of the backend client the poller needs.
type OrderSource interface {
	Token() string
	RestaurantOrders(ctx context.Context, restaurantID string) ([]model.Order, error)
}

type Recorder interface {
	PollCompleted(trigger, outcome string)
	StaleResponse()
	AlertFired()
	PollerRunning(delta float64)
}

type nopRecorder struct{}

func (nopRecorder) PollCompleted(string, string) {}
func (nopRecorder) StaleResponse()               {}
func (nopRecorder) AlertFired()                  {}
func (nopRecorder) PollerRunning(float64)        {}

type Options struct {
	MinFetchInterval time.Duration
	PollInterval     time.Duration
	AlertDuration    time.Duration

	Logger  *zap.Logger
	Metrics Recorder
	Alerts  notify.Sink
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MinFetchInterval < 0 {
		o.MinFetchInterval = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.AlertDuration <= 0 {
		o.AlertDuration = DefaultAlertDuration
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// OrderPoller serves one manager session. It doubles as the push.Handler for
// that session's real-time channel.
type OrderPoller struct {
	store  *state.Store
	source OrderSource
	sub    *push.Subscriber
	opts   Options
	log    *zap.Logger

	gateMu    sync.Mutex
	lastFetch time.Time

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	loops      sync.WaitGroup
	alertTimer *time.Timer

	sends sync.WaitGroup
}

// New builds a poller. sub may be nil, in which case only the periodic poll
// keeps the orders fresh.
func New(store *state.Store, source OrderSource, sub *push.Subscriber, opts Options) *OrderPoller {
	opts = opts.withDefaults()
	return &OrderPoller{
		store:  store,
		source: source,
		sub:    sub,
		opts:   opts,
		log:    opts.Logger.Named("poller").With(zap.String("session_id", store.Snapshot().SessionID)),
	}
}

// Start launches the periodic poll and, when configured, the push
// subscription. Starting a running poller does nothing.
func (p *OrderPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.ctx, p.cancel = ctx, cancel
	p.opts.Metrics.PollerRunning(1)

	p.loops.Add(1)
	go func() {
		defer p.loops.Done()
		p.pollLoop(ctx)
	}()

	if p.sub != nil {
		p.loops.Add(1)
		go func() {
			defer p.loops.Done()
			if err := p.sub.Run(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn("order push channel stopped", zap.Error(err))
			}
		}()
	}
	p.log.Info("order polling started", zap.Duration("interval", p.opts.PollInterval))
}

// Stop ends polling and waits for in-flight work. It is safe to call more
// than once.
func (p *OrderPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	if p.alertTimer != nil {
		p.alertTimer.Stop()
		p.alertTimer = nil
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.opts.Metrics.PollerRunning(-1)
		p.log.Info("order polling stopped")
	}
	p.loops.Wait()
	p.sends.Wait()
}

func (p *OrderPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// halt cancels the loops without waiting, for use from inside them.
func (p *OrderPoller) halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *OrderPoller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.FetchOrders(ctx, TriggerPoll)
		}
	}
}

// Refresh is a user-requested fetch. It returns ErrThrottled when the last
// fetch was too recent.
func (p *OrderPoller) Refresh(ctx context.Context) error {
	return p.FetchOrders(ctx, TriggerManual)
}

// FetchOrders loads the restaurant's orders into the store. Only manual
// triggers see ErrThrottled; the others are dropped silently by the gate.
func (p *OrderPoller) FetchOrders(ctx context.Context, trigger Trigger) error {
	snap := p.store.Snapshot()
	if snap.Role() != model.RoleManager {
		p.store.ClearOrders()
		return nil
	}

	if !p.pass() {
		p.opts.Metrics.PollCompleted(string(trigger), "throttled")
		if trigger == TriggerManual {
			return ErrThrottled
		}
		return nil
	}

	if p.source == nil || p.source.Token() == "" {
		p.log.Warn("no backend token, stopping order polling")
		p.halt()
		return nil
	}
	restaurantID := snap.RestaurantID()
	if restaurantID == "" {
		return nil
	}

	gen := p.store.BeginOrdersFetch()
	orders, err := p.source.RestaurantOrders(ctx, restaurantID)
	if err != nil {
		return p.fail(ctx, gen, trigger, err)
	}

	sorted := model.SortOrders(orders)
	if !p.store.CommitOrders(gen, sorted) {
		p.opts.Metrics.StaleResponse()
		p.opts.Metrics.PollCompleted(string(trigger), "stale")
		return nil
	}
	p.opts.Metrics.PollCompleted(string(trigger), "ok")
	if len(sorted) > 0 {
		p.handleNewOrder(sorted[0])
	}
	return nil
}

func (p *OrderPoller) pass() bool {
	if p.opts.MinFetchInterval == 0 {
		return true
	}
	p.gateMu.Lock()
	defer p.gateMu.Unlock()
	now := p.opts.Now()
	if !p.lastFetch.IsZero() && now.Sub(p.lastFetch) < p.opts.MinFetchInterval {
		return false
	}
	p.lastFetch = now
	return true
}

func (p *OrderPoller) fail(ctx context.Context, gen uint64, trigger Trigger, err error) error {
	if ctx.Err() != nil {
		p.store.FailOrders(gen, "")
		return ctx.Err()
	}
	p.opts.Metrics.PollCompleted(string(trigger), "error")
	if !p.store.FailOrders(gen, msgFetchFailed) {
		p.opts.Metrics.StaleResponse()
		return fmt.Errorf("fetch orders: %w", err)
	}

	msg := msgConnectionLost
	if errors.Is(err, backend.ErrUnauthorized) {
		msg = msgAuthFailed
	}
	p.store.AddNotification(model.Notification{
		Type:    model.NotificationError,
		Title:   "Connection Error",
		Message: msg,
	})
	p.log.Error("fetching orders failed", zap.String("trigger", string(trigger)), zap.Error(err))
	return fmt.Errorf("fetch orders: %w", err)
}

// handleNewOrder raises the alert when order is not the one already known
// as the latest.
func (p *OrderPoller) handleNewOrder(order model.Order) {
	if !p.store.MarkLatestOrder(order.OrderID) {
		return
	}
	code := order.DisplayCode()
	n := p.store.AddNotification(model.Notification{
		Type:    model.NotificationNewOrder,
		Title:   "New Order Received",
		Message: fmt.Sprintf("Order #%s has been placed", code),
		OrderID: order.OrderID,
	})
	p.opts.Metrics.AlertFired()
	p.log.Info("new order", zap.String("order_id", order.OrderID), zap.String("order_code", code))

	p.mu.Lock()
	if p.alertTimer != nil {
		p.alertTimer.Stop()
	}
	p.alertTimer = time.AfterFunc(p.opts.AlertDuration, func() {
		p.store.SetNewOrderAlert(false)
	})
	p.mu.Unlock()

	if p.opts.Alerts == nil {
		return
	}
	snap := p.store.Snapshot()
	alert := notify.Alert{
		SessionID:    snap.SessionID,
		RestaurantID: snap.RestaurantID(),
		OrderID:      order.OrderID,
		OrderCode:    code,
		Title:        n.Title,
		Message:      n.Message,
		Sound:        true,
		At:           n.Timestamp,
	}
	p.sends.Add(1)
	go func() {
		defer p.sends.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		defer cancel()
		_ = p.opts.Alerts.Send(ctx, alert)
	}()
}

// HandlePush feeds a pushed order through the same path as a fetched one
// and then refreshes the list.
func (p *OrderPoller) HandlePush(ctx context.Context, order model.Order) error {
	p.handleNewOrder(order)
	return p.FetchOrders(ctx, TriggerPush)
}

func (p *OrderPoller) Connected(push.Emitter) {
	p.log.Debug("order push channel connected")
}

func (p *OrderPoller) Disconnected(err error) {
	p.log.Debug("order push channel disconnected", zap.Error(err))
}

func (p *OrderPoller) Handle(ev push.Event) {
	switch ev.Name {
	case push.EventNewOrder:
		var order model.Order
		if err := ev.Decode(&order); err != nil {
			p.log.Warn("bad newOrder payload", zap.Error(err))
			return
		}
		p.mu.Lock()
		ctx := p.ctx
		p.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		_ = p.HandlePush(ctx, order)
	case push.EventErrorMessage:
		var msg string
		_ = ev.Decode(&msg)
		p.log.Warn("push error message", zap.String("message", msg))
	}
}
