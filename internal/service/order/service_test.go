package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/cache"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	repo "github.com/Additional-Code/emporia/internal/repository/order"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

type fakeRepo struct {
	orders     map[int64]*entity.Order
	getCalls   int
	cancelErr  error
	lastNotes  string
	lastActor  string
	transition entity.OrderStatus
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	f.getCalls++
	order, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return order, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID int64, _, _ int) ([]*entity.Order, error) {
	var out []*entity.Order
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) History(context.Context, int64) ([]*entity.OrderStatusHistory, error) {
	return nil, nil
}

func (f *fakeRepo) Transition(_ context.Context, id int64, to entity.OrderStatus, notes, changedBy string) (*entity.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if _, err := entity.Transition(order, to, notes, changedBy, time.Now().UTC()); err != nil {
		return nil, err
	}
	f.transition = to
	return order, nil
}

func (f *fakeRepo) Cancel(_ context.Context, id int64, notes, changedBy string) (*entity.Order, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.lastNotes = notes
	f.lastActor = changedBy
	return f.Transition(context.Background(), id, entity.OrderCancelled, notes, changedBy)
}

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newTestService(orders ...*entity.Order) (*Service, *fakeRepo, *memoryCache) {
	byID := make(map[int64]*entity.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	repository := &fakeRepo{orders: byID}
	store := newMemoryCache()
	svc := NewService(config.Config{Cache: config.Cache{DefaultTTL: time.Minute}}, repository, store, nil)
	return svc, repository, store
}

func TestGetCachesOrder(t *testing.T) {
	svc, repository, store := newTestService(&entity.Order{ID: 1, Number: "ORD-A", Status: entity.OrderPending})

	first, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-A", first.Number)
	assert.Contains(t, store.data, cache.OrderKey(1))

	second, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-A", second.Number)
	assert.Equal(t, 1, repository.getCalls, "second read should hit cache")
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), 99)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestCancelPendingOrder(t *testing.T) {
	svc, repository, store := newTestService(&entity.Order{
		ID:            1,
		Status:        entity.OrderPending,
		PaymentStatus: entity.PaymentPending,
	})

	// Seed cache to verify invalidation.
	_, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)

	order, err := svc.Cancel(context.Background(), 1, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, order.Status)
	assert.Equal(t, "customer", repository.lastActor)
	assert.Contains(t, repository.lastNotes, "changed my mind")
	assert.Empty(t, store.data, "cache entry should be invalidated")
}

func TestCancelShippedOrderRejected(t *testing.T) {
	svc, _, _ := newTestService(&entity.Order{ID: 1, Status: entity.OrderShipped})

	_, err := svc.Cancel(context.Background(), 1, "")
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindConflict, appErr.Kind())
	assert.Equal(t, errorbank.CodeOrderNotCancellable, appErr.Code())
}

func TestTransitionConfirmsOrder(t *testing.T) {
	svc, repository, _ := newTestService(&entity.Order{ID: 1, Status: entity.OrderPending})

	order, err := svc.Transition(context.Background(), 1, entity.OrderConfirmed, "paid manually", "admin")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderConfirmed, order.Status)
	assert.Equal(t, entity.OrderConfirmed, repository.transition)
}

func TestTransitionIllegalEdge(t *testing.T) {
	svc, _, _ := newTestService(&entity.Order{ID: 1, Status: entity.OrderPending})

	_, err := svc.Transition(context.Background(), 1, entity.OrderDelivered, "", "admin")
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindConflict, appErr.Kind())
	assert.Equal(t, errorbank.CodeInvalidTransition, appErr.Code())
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(&entity.Order{ID: 1, Status: entity.OrderPending})

	_, err := svc.Transition(context.Background(), 1, entity.OrderStatus("vanished"), "", "admin")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestListByUser(t *testing.T) {
	userID := int64(5)
	svc, _, _ := newTestService(
		&entity.Order{ID: 1, UserID: &userID},
		&entity.Order{ID: 2},
	)

	orders, err := svc.List(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
