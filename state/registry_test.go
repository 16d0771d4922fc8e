package state

import (
	"context"
	"sync"
	"testing"

	"dashboard/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemPersister() *memPersister {
	return &memPersister{data: map[string][]byte{}}
}

func (m *memPersister) LoadState(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return d, nil
}

func (m *memPersister) SaveState(_ context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = state
	m.saves++
	return nil
}

func TestRegistryRestoresPersistedState(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()

	r1 := NewRegistry(p, nil)
	s := r1.Create("sess")
	s.SetUser(&model.User{ID: "u1", Role: model.RoleManager})
	s.SetRestaurant(&model.Restaurant{ID: "r1", Name: "Yod Abyssinia"})
	s.MarkLatestOrder("o9")
	s.SetFoods("m1", []model.Food{{ID: "f1"}})
	s.LoadMenus(ctx, false, func(context.Context) ([]model.Menu, error) { return nil, assert.AnError })
	gen := s.BeginOrdersFetch()
	s.CommitOrders(gen, []model.Order{{OrderID: "o9"}})
	s.BeginOrdersFetch()

	require.NoError(t, r1.Flush(ctx))
	assert.Equal(t, 1, p.saves)
	require.NoError(t, r1.Flush(ctx))
	assert.Equal(t, 1, p.saves, "unchanged stores are not saved again")

	r2 := NewRegistry(p, nil)
	restored, err := r2.Get(ctx, "sess")
	require.NoError(t, err)

	snap := restored.Snapshot()
	assert.True(t, snap.IsLoggedIn)
	assert.Equal(t, model.RoleManager, snap.Role())
	assert.Equal(t, "r1", snap.RestaurantID())
	assert.Equal(t, "o9", snap.LatestOrderID)
	assert.Len(t, snap.Orders, 1)
	assert.Contains(t, snap.FoodsByMenu, "m1")
	assert.False(t, snap.OrdersLoading, "loading flags are not persisted")
	assert.Empty(t, snap.MenusError, "errors are not persisted")
}

func TestRegistryGetUnknownSession(t *testing.T) {
	r := NewRegistry(newMemPersister(), nil)
	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	noPersist := NewRegistry(nil, nil)
	_, err = noPersist.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryDrop(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Create("a")
	r.Create("b")
	assert.ElementsMatch(t, []string{"a", "b"}, r.Sessions())

	r.Drop("a")
	assert.Equal(t, []string{"b"}, r.Sessions())
}

func TestRegistryAppliesOptions(t *testing.T) {
	r := NewRegistry(nil, nil, WithNotificationCap(2))
	s := r.Create("a")
	for i := 0; i < 4; i++ {
		s.AddNotification(model.Notification{Title: "n"})
	}
	assert.Len(t, s.Snapshot().Notifications, 2)
}
