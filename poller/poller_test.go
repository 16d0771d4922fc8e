package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"dashboard/backend"
	"dashboard/model"
	"dashboard/notify"
	"dashboard/push"
	"dashboard/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu     sync.Mutex
	token  string
	orders []model.Order
	err    error
	calls  int
	block  chan struct{}
}

func (f *fakeSource) Token() string { return f.token }

func (f *fakeSource) RestaurantOrders(ctx context.Context, id string) ([]model.Order, error) {
	f.mu.Lock()
	f.calls++
	orders, err, block := f.orders, f.err, f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return orders, err
}

func (f *fakeSource) set(orders []model.Order, err error) {
	f.mu.Lock()
	f.orders, f.err = orders, err
	f.mu.Unlock()
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) Alerts() []notify.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Alert(nil), r.alerts...)
}

func managerStore() *state.Store {
	s := state.NewStore("sess-1")
	s.SetUser(&model.User{ID: "u1", Role: model.RoleManager})
	s.SetRestaurant(&model.Restaurant{ID: "r1", Name: "Bahiran"})
	return s
}

func testOptions() Options {
	return Options{MinFetchInterval: 0, PollInterval: time.Hour, AlertDuration: time.Hour}
}

func TestFetchOrdersSortsAndAlertsOnce(t *testing.T) {
	store := managerStore()
	src := &fakeSource{token: "tok", orders: []model.Order{
		{OrderID: "a", OrderStatus: model.StatusCompleted},
		{OrderID: "b", OrderCode: "BD-2", OrderStatus: model.StatusPending},
		{OrderID: "c", OrderStatus: model.StatusPreparing},
	}}
	sink := &recordingSink{}
	opts := testOptions()
	opts.Alerts = sink
	p := New(store, src, nil, opts)
	defer p.Stop()

	require.NoError(t, p.FetchOrders(context.Background(), TriggerLogin))

	snap := store.Snapshot()
	ids := []string{}
	for _, o := range snap.Orders {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.False(t, snap.OrdersLoading)
	assert.True(t, snap.NewOrderAlert)
	assert.Equal(t, "b", snap.LatestOrderID)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "New Order Received", snap.Notifications[0].Title)
	assert.Equal(t, "Order #BD-2 has been placed", snap.Notifications[0].Message)

	require.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))
	assert.Len(t, store.Snapshot().Notifications, 1)

	p.Stop()
	alerts := sink.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "sess-1", alerts[0].SessionID)
	assert.Equal(t, "r1", alerts[0].RestaurantID)
	assert.True(t, alerts[0].Sound)
}

func TestFetchOrdersGate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	opts := testOptions()
	opts.MinFetchInterval = 3 * time.Second
	opts.Now = func() time.Time { return now }
	src := &fakeSource{token: "tok"}
	p := New(managerStore(), src, nil, opts)

	require.NoError(t, p.Refresh(context.Background()))
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrThrottled)
	assert.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))
	assert.Equal(t, 1, src.Calls())

	now = now.Add(3 * time.Second)
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 2, src.Calls())
}

func TestFetchOrdersErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", &backend.APIError{Op: "orders", StatusCode: http.StatusUnauthorized, Message: "expired"}, msgAuthFailed},
		{"network", errors.New("dial tcp: refused"), msgConnectionLost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := managerStore()
			p := New(store, &fakeSource{token: "tok", err: tc.err}, nil, testOptions())

			err := p.FetchOrders(context.Background(), TriggerManual)
			assert.ErrorIs(t, err, tc.err)

			snap := store.Snapshot()
			assert.Equal(t, msgFetchFailed, snap.OrdersError)
			assert.False(t, snap.OrdersLoading)
			require.Len(t, snap.Notifications, 1)
			assert.Equal(t, model.NotificationError, snap.Notifications[0].Type)
			assert.Equal(t, "Connection Error", snap.Notifications[0].Title)
			assert.Equal(t, tc.want, snap.Notifications[0].Message)
		})
	}
}

func TestFetchOrdersNotManagerClears(t *testing.T) {
	store := state.NewStore("s")
	store.SetUser(&model.User{Role: model.RoleAdmin})
	src := &fakeSource{token: "tok"}
	p := New(store, src, nil, testOptions())

	require.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))
	assert.Zero(t, src.Calls())
	assert.Empty(t, store.Snapshot().Orders)
}

func TestFetchOrdersWithoutTokenStopsPolling(t *testing.T) {
	src := &fakeSource{}
	p := New(managerStore(), src, nil, testOptions())
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))
	assert.Zero(t, src.Calls())
	p.loops.Wait()
}

func TestFetchOrdersWithoutRestaurantIsNoop(t *testing.T) {
	store := state.NewStore("s")
	store.SetUser(&model.User{Role: model.RoleManager})
	src := &fakeSource{token: "tok"}
	p := New(store, src, nil, testOptions())

	require.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))
	assert.Zero(t, src.Calls())
}

func TestStaleResultIsDiscarded(t *testing.T) {
	store := managerStore()
	slow := &fakeSource{token: "tok", orders: []model.Order{{OrderID: "old"}}, block: make(chan struct{})}
	p := New(store, slow, nil, testOptions())

	done := make(chan error)
	go func() { done <- p.FetchOrders(context.Background(), TriggerPoll) }()
	require.Eventually(t, func() bool { return slow.Calls() == 1 }, time.Second, time.Millisecond)

	fast := &fakeSource{token: "tok", orders: []model.Order{{OrderID: "new"}}}
	p.source = fast
	require.NoError(t, p.FetchOrders(context.Background(), TriggerPoll))

	close(slow.block)
	require.NoError(t, <-done)

	snap := store.Snapshot()
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, "new", snap.Orders[0].OrderID)
	assert.False(t, snap.OrdersLoading)
}

func TestAlertFlagResets(t *testing.T) {
	store := managerStore()
	opts := testOptions()
	opts.AlertDuration = 10 * time.Millisecond
	p := New(store, &fakeSource{token: "tok"}, nil, opts)
	defer p.Stop()

	p.handleNewOrder(model.Order{OrderID: "x"})
	assert.True(t, store.Snapshot().NewOrderAlert)
	assert.Eventually(t, func() bool { return !store.Snapshot().NewOrderAlert }, time.Second, 5*time.Millisecond)

	p.handleNewOrder(model.Order{})
	assert.Len(t, store.Snapshot().Notifications, 1)
}

func TestPeriodicPoll(t *testing.T) {
	src := &fakeSource{token: "tok"}
	opts := testOptions()
	opts.PollInterval = 5 * time.Millisecond
	p := New(managerStore(), src, nil, opts)

	p.Start(context.Background())
	p.Start(context.Background())
	assert.True(t, p.Running())
	assert.Eventually(t, func() bool { return src.Calls() >= 2 }, time.Second, time.Millisecond)
	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
}

func TestHandlePushEvent(t *testing.T) {
	store := managerStore()
	src := &fakeSource{token: "tok"}
	p := New(store, src, nil, testOptions())
	defer p.Stop()

	p.Handle(push.Event{Name: push.EventNewOrder, Data: []byte(`{"_id":"p1","orderCode":"BD-9","orderStatus":"Pending"}`)})

	snap := store.Snapshot()
	assert.Equal(t, "p1", snap.LatestOrderID)
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, "Order #BD-9 has been placed", snap.Notifications[0].Message)
	assert.Equal(t, 1, src.Calls())

	p.Handle(push.Event{Name: push.EventNewOrder, Data: []byte(`not json`)})
	assert.Equal(t, 1, src.Calls())
}

func TestManagerReplacesAndStops(t *testing.T) {
	m := NewManager(context.Background(), testOptions(), nil)
	src := &fakeSource{token: "tok"}

	first := m.Start("s1", managerStore(), src)
	second := m.Start("s1", managerStore(), src)
	assert.False(t, first.Running())
	assert.True(t, second.Running())
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, second, got)

	m.Start("s2", managerStore(), src)
	m.Stop("s1")
	assert.False(t, second.Running())
	assert.Equal(t, 1, m.Len())

	m.StopAll()
	assert.Zero(t, m.Len())
}
