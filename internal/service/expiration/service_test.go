package expiration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/event"
	"github.com/Additional-Code/emporia/internal/messaging"
)

type fakePublisher struct {
	published []event.OrderEvent
}

func (f *fakePublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	var evt event.OrderEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return err
	}
	f.published = append(f.published, evt)
	return nil
}

func (f *fakePublisher) Consume(context.Context, messaging.Handler) error { return nil }
func (f *fakePublisher) Topic() string                                    { return "orders.events" }

type fakeOrders struct {
	candidates  []int64
	selectErr   error
	expireErrs  map[int64]error
	skipped     map[int64]bool
	expired     []int64
	lastCutoffs map[int64]time.Time
	lastNotes   string
}

func (f *fakeOrders) SelectExpiredCandidates(_ context.Context, _ time.Time) ([]int64, error) {
	return f.candidates, f.selectErr
}

func (f *fakeOrders) ExpireUnpaid(_ context.Context, orderID int64, cutoff time.Time, notes string) (bool, error) {
	if f.lastCutoffs == nil {
		f.lastCutoffs = make(map[int64]time.Time)
	}
	f.lastCutoffs[orderID] = cutoff
	f.lastNotes = notes
	if err := f.expireErrs[orderID]; err != nil {
		return false, err
	}
	if f.skipped[orderID] {
		return false, nil
	}
	f.expired = append(f.expired, orderID)
	return true, nil
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	return &entity.Order{ID: id, Status: entity.OrderCancelled}, nil
}

func newService(orders *fakeOrders) *Service {
	return NewService(config.Config{
		Orders: config.Orders{ExpirationWindow: 24 * time.Hour},
	}, orders, nil, nil)
}

func newServiceWithEmitter(orders *fakeOrders, publisher *fakePublisher) *Service {
	emitter := event.NewEmitter(config.Config{
		Messaging: config.Messaging{Enabled: true},
	}, publisher, nil)
	return NewService(config.Config{
		Orders: config.Orders{ExpirationWindow: 24 * time.Hour},
	}, orders, emitter, nil)
}

func TestSweepExpiresStaleOrders(t *testing.T) {
	orders := &fakeOrders{candidates: []int64{1, 2, 3}}

	count, err := newService(orders).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []int64{1, 2, 3}, orders.expired)
}

func TestSweepCutoffUsesWindow(t *testing.T) {
	orders := &fakeOrders{candidates: []int64{1}}

	_, err := newService(orders).Sweep(context.Background())
	require.NoError(t, err)

	cutoff := orders.lastCutoffs[1]
	expected := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, expected, cutoff, time.Minute)
}

func TestSweepNotesNameTheWindow(t *testing.T) {
	orders := &fakeOrders{candidates: []int64{1}}

	_, err := newService(orders).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "payment not received within 24h0m0s", orders.lastNotes)
}

func TestSweepEmitsPaymentExpiredPerCancelledOrder(t *testing.T) {
	orders := &fakeOrders{
		candidates: []int64{1, 2},
		skipped:    map[int64]bool{2: true},
	}
	publisher := &fakePublisher{}

	count, err := newServiceWithEmitter(orders, publisher).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, publisher.published, 1, "only the cancelled order is announced")
	assert.Equal(t, event.TypeOrderPaymentExpired, publisher.published[0].Type)
	assert.Equal(t, int64(1), publisher.published[0].OrderID)
}

func TestSweepWithinOverridesWindow(t *testing.T) {
	orders := &fakeOrders{candidates: []int64{1}}

	_, err := newService(orders).SweepWithin(context.Background(), 2*time.Hour)
	require.NoError(t, err)

	cutoff := orders.lastCutoffs[1]
	expected := time.Now().UTC().Add(-2 * time.Hour)
	assert.WithinDuration(t, expected, cutoff, time.Minute)
}

func TestSweepSkipsReconciledOrders(t *testing.T) {
	orders := &fakeOrders{
		candidates: []int64{1, 2},
		skipped:    map[int64]bool{2: true},
	}

	count, err := newService(orders).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []int64{1}, orders.expired)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	orders := &fakeOrders{
		candidates: []int64{1, 2, 3},
		expireErrs: map[int64]error{2: errors.New("deadlock detected")},
	}

	count, err := newService(orders).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int64{1, 3}, orders.expired)
}

func TestSweepSelectFailure(t *testing.T) {
	orders := &fakeOrders{selectErr: errors.New("replica down")}

	_, err := newService(orders).Sweep(context.Background())
	assert.Error(t, err)
}

func TestSweepNoCandidates(t *testing.T) {
	count, err := newService(&fakeOrders{}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
