// Package locations follows delivery people on the admin map. It asks the
// marketplace for everyone's position on connect and periodically after that,
// and keeps the latest position per person.
package locations

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"dashboard/model"
	"dashboard/push"

	"go.uber.org/zap"
)

const DefaultRefreshInterval = 30 * time.Second

type Recorder interface {
	LocationUpdated()
}

type nopRecorder struct{}

func (nopRecorder) LocationUpdated() {}

type Options struct {
	RefreshInterval time.Duration
	Logger          *zap.Logger
	Metrics         Recorder
	Now             func() time.Time
}

type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	Tracked   int    `json:"tracked"`
}

type update struct {
	UserID   string                  `json:"userId"`
	Location *model.DeliveryLocation `json:"location"`
}

// Tracker is the push.Handler of one admin's location channel.
type Tracker struct {
	sub      *push.Subscriber
	interval time.Duration
	log      *zap.Logger
	metrics  Recorder
	now      func() time.Time

	mu        sync.RWMutex
	persons   []model.DeliveryPerson
	index     map[string]int
	connected bool
	lastError string
	emitter   push.Emitter

	refreshMu   sync.Mutex
	stopRefresh context.CancelFunc
	refreshDone chan struct{}
	runCtx      context.Context
}

func NewTracker(sub *push.Subscriber, opts Options) *Tracker {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		sub:      sub,
		interval: opts.RefreshInterval,
		log:      opts.Logger.Named("locations"),
		metrics:  opts.Metrics,
		now:      opts.Now,
		index:    make(map[string]int),
	}
}

// Run holds the channel open until ctx ends.
func (t *Tracker) Run(ctx context.Context) error {
	t.refreshMu.Lock()
	t.runCtx = ctx
	t.refreshMu.Unlock()
	err := t.sub.Run(ctx, t)
	t.haltRefresh()
	t.mu.Lock()
	t.connected, t.emitter = false, nil
	t.mu.Unlock()
	return err
}

func (t *Tracker) Connected(e push.Emitter) {
	t.mu.Lock()
	t.connected, t.lastError, t.emitter = true, "", e
	t.mu.Unlock()

	t.log.Info("location channel connected")
	t.request(e)
	t.startRefresh(e)
}

func (t *Tracker) Disconnected(err error) {
	t.haltRefresh()
	t.mu.Lock()
	t.connected, t.emitter = false, nil
	if err != nil {
		t.lastError = err.Error()
	}
	t.mu.Unlock()
}

func (t *Tracker) Handle(ev push.Event) {
	switch ev.Name {
	case push.EventLocationUpdate:
		var u update
		if err := ev.Decode(&u); err != nil {
			t.log.Debug("bad location payload", zap.Error(err))
			return
		}
		t.Upsert(u.UserID, u.Location)
	case push.EventErrorMessage:
		var msg string
		if err := ev.Decode(&msg); err != nil {
			msg = string(ev.Data)
		}
		t.mu.Lock()
		t.lastError = msg
		t.mu.Unlock()
	case push.EventMessage:
		t.log.Debug("server message", zap.ByteString("data", ev.Data))
	}
}

// Upsert records a position. Updates without a location are ignored.
func (t *Tracker) Upsert(userID string, loc *model.DeliveryLocation) {
	if loc == nil {
		return
	}
	l := loc.Normalize()
	id := firstNonEmpty(userID, l.DeliveryPersonID, l.UserID)

	t.mu.Lock()
	defer t.mu.Unlock()
	p := model.DeliveryPerson{UserID: id, Location: l, LastUpdate: t.now()}
	if i, ok := t.index[id]; ok {
		t.persons[i] = p
	} else {
		t.index[id] = len(t.persons)
		t.persons = append(t.persons, p)
	}
	t.metrics.LocationUpdated()
}

// RequestAll asks every delivery person to report in.
func (t *Tracker) RequestAll() error {
	t.mu.RLock()
	e := t.emitter
	t.mu.RUnlock()
	if e == nil {
		return push.ErrNotConnected
	}
	return e.Emit(push.EventRequestAllLocation, nil)
}

func (t *Tracker) request(e push.Emitter) {
	if err := e.Emit(push.EventRequestAllLocation, nil); err != nil && !errors.Is(err, push.ErrNotConnected) {
		t.log.Warn("requesting locations failed", zap.Error(err))
	}
}

func (t *Tracker) startRefresh(e push.Emitter) {
	t.haltRefresh()

	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()
	parent := t.runCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.stopRefresh, t.refreshDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.request(e)
			}
		}
	}()
}

func (t *Tracker) haltRefresh() {
	t.refreshMu.Lock()
	cancel, done := t.stopRefresh, t.refreshDone
	t.stopRefresh, t.refreshDone = nil, nil
	t.refreshMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{Connected: t.connected, Error: t.lastError, Tracked: len(t.persons)}
}

// Snapshot lists tracked people in arrival order, filtered by a
// case-insensitive match on name or phone.
func (t *Tracker) Snapshot(search string) []model.DeliveryPerson {
	q := strings.ToLower(strings.TrimSpace(search))
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.DeliveryPerson, 0, len(t.persons))
	for _, p := range t.persons {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Location.UserName), q) &&
			!strings.Contains(strings.ToLower(p.Location.UserPhone), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Bounds covers every person with valid coordinates. ok is false when there
// are none.
func (t *Tracker) Bounds() (b Bounds, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.persons {
		if !p.Location.HasCoordinates() {
			continue
		}
		lat, lng := p.Location.Latitude.Value, p.Location.Longitude.Value
		if !ok {
			b = Bounds{MinLat: lat, MaxLat: lat, MinLng: lng, MaxLng: lng}
			ok = true
			continue
		}
		b.MinLat, b.MaxLat = min(b.MinLat, lat), max(b.MaxLat, lat)
		b.MinLng, b.MaxLng = min(b.MinLng, lng), max(b.MaxLng, lng)
	}
	return b, ok
}

// Sorted returns the tracked people most recently updated first.
func (t *Tracker) Sorted() []model.DeliveryPerson {
	out := t.Snapshot("")
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUpdate.After(out[j].LastUpdate) })
	return out
}

// VehicleIcon maps a delivery method onto the marker the map should draw.
func VehicleIcon(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "":
		return "bahiran"
	case "car":
		return "car"
	case "bike", "bicycle":
		return "bike"
	case "motor", "motorcycle":
		return "motorcycle"
	case "walk", "walking":
		return "walking"
	case "verified":
		return "verified"
	default:
		return "default"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
