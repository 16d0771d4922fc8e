package push

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/websocket"
)

type fakeConn struct {
	events chan Event
	sent   chan Event
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 8), sent: make(chan Event, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Receive() (Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return Event{}, io.EOF
		}
		return ev, nil
	case <-c.closed:
		return Event{}, io.EOF
	}
}

func (c *fakeConn) Send(ev Event) error {
	c.sent <- ev
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type scriptedDialer struct {
	mu    sync.Mutex
	conns []Conn
	errs  []error
	calls int
}

func (d *scriptedDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("no more connections")
}

type recordingHandler struct {
	mu           sync.Mutex
	connected    int
	events       []Event
	disconnected []error
	onConnect    func(Emitter)
	onEvent      func(Event)
}

func (h *recordingHandler) Connected(e Emitter) {
	h.mu.Lock()
	h.connected++
	fn := h.onConnect
	h.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

func (h *recordingHandler) Handle(ev Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	fn := h.onEvent
	h.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (h *recordingHandler) Disconnected(err error) {
	h.mu.Lock()
	h.disconnected = append(h.disconnected, err)
	h.mu.Unlock()
}

func TestSubscriberGivesUpAfterAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialErr := errors.New("connection refused")
	d := &scriptedDialer{errs: []error{dialErr, dialErr, dialErr, dialErr}}
	s := NewSubscriber(d, Options{Attempts: 3, Delay: time.Millisecond})
	h := &recordingHandler{}

	err := s.Run(context.Background(), h)
	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 3, d.calls)
	assert.Len(t, h.disconnected, 3)
	assert.Zero(t, h.connected)
}

func TestSubscriberReconnectsAfterDrop(t *testing.T) {
	defer goleak.VerifyNone(t)

	first, second := newFakeConn(), newFakeConn()
	first.events <- Event{Name: EventMessage, Data: []byte(`"hello"`)}
	close(first.events)

	var reconnects int32
	d := &scriptedDialer{conns: []Conn{first, second}}
	s := NewSubscriber(d, Options{Attempts: 2, Delay: time.Millisecond, OnReconnect: func() { atomic.AddInt32(&reconnects, 1) }})

	ctx, cancel := context.WithCancel(context.Background())
	h := &recordingHandler{}
	h.onConnect = func(e Emitter) {
		h.mu.Lock()
		n := h.connected
		h.mu.Unlock()
		if n == 2 {
			cancel()
		}
	}

	err := s.Run(ctx, h)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, h.connected)
	require.Len(t, h.events, 1)
	assert.Equal(t, EventMessage, h.events[0].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reconnects))
	assert.False(t, s.Connected())
}

func TestEmitWithoutConnection(t *testing.T) {
	s := NewSubscriber(&scriptedDialer{}, Options{})
	assert.ErrorIs(t, s.Emit(EventRequestAllLocation, nil), ErrNotConnected)
}

func TestEventDecode(t *testing.T) {
	var payload struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, Event{Name: EventNewOrder, Data: []byte(`{"orderId":"o7"}`)}.Decode(&payload))
	assert.Equal(t, "o7", payload.OrderID)
	assert.Error(t, Event{Name: EventNewOrder}.Decode(&payload))
}

func TestWebSocketRoundTrip(t *testing.T) {
	received := make(chan Event, 1)
	var gotAuth, gotToken string

	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		gotAuth = ws.Request().Header.Get("Authorization")
		gotToken = ws.Request().URL.Query().Get("token")

		var ev Event
		if err := websocket.JSON.Receive(ws, &ev); err != nil {
			return
		}
		received <- ev
		_ = websocket.JSON.Send(ws, Event{Name: EventNewOrder, Data: []byte(`{"orderId":"o1"}`)})

		var discard Event
		_ = websocket.JSON.Receive(ws, &discard)
	}))
	defer srv.Close()

	d := WSDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Token: "tok", Timeout: 2 * time.Second}
	s := NewSubscriber(d, Options{Attempts: 1, Delay: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := &recordingHandler{}
	h.onConnect = func(e Emitter) {
		assert.NoError(t, e.Emit(EventRequestAllLocation, nil))
	}
	h.onEvent = func(ev Event) {
		if ev.Name == EventNewOrder {
			cancel()
		}
	}

	err := s.Run(ctx, h)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case ev := <-received:
		assert.Equal(t, EventRequestAllLocation, ev.Name)
	default:
		t.Fatal("server did not receive the emitted event")
	}
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "tok", gotToken)
	require.Len(t, h.events, 1)
}
