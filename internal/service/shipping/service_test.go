package shipping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/carrier/andreani"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	shipmentrepo "github.com/Additional-Code/emporia/internal/repository/shipment"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

type fakeOrders struct {
	orders map[int64]*entity.Order
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	return order, nil
}

type fakeShipments struct {
	byID         map[int64]*entity.Shipment
	byTracking   map[string]*entity.Shipment
	nextID       int64
	failedID     int64
	failReason   string
	cascadeFails bool
}

func newFakeShipments() *fakeShipments {
	return &fakeShipments{
		byID:       make(map[int64]*entity.Shipment),
		byTracking: make(map[string]*entity.Shipment),
		nextID:     1,
	}
}

func (f *fakeShipments) Create(_ context.Context, shipment *entity.Shipment) error {
	shipment.ID = f.nextID
	f.nextID++
	f.byID[shipment.ID] = shipment
	return nil
}

func (f *fakeShipments) GetByOrderID(_ context.Context, orderID int64) (*entity.Shipment, error) {
	for _, shipment := range f.byID {
		if shipment.OrderID == orderID {
			return shipment, nil
		}
	}
	return nil, shipmentrepo.ErrNotFound
}

func (f *fakeShipments) MarkShipped(_ context.Context, shipmentID int64, trackingNumber, labelURL string, eta *time.Time) (*entity.Shipment, error) {
	shipment := f.byID[shipmentID]
	now := time.Now().UTC()
	shipment.TrackingNumber = trackingNumber
	shipment.LabelURL = labelURL
	shipment.EstimatedDelivery = eta
	shipment.Status = entity.ShippingShipped
	shipment.ShippedAt = &now
	f.byTracking[trackingNumber] = shipment
	return shipment, nil
}

func (f *fakeShipments) MarkFailed(_ context.Context, shipmentID int64, reason string) error {
	f.failedID = shipmentID
	f.failReason = reason
	f.byID[shipmentID].Status = entity.ShippingFailed
	return nil
}

func (f *fakeShipments) ApplyCarrierUpdate(_ context.Context, trackingNumber string, status entity.ShippingStatus, raw map[string]any) (entity.ShipmentReconciliation, *entity.Shipment, error) {
	shipment, ok := f.byTracking[trackingNumber]
	if !ok {
		return entity.ShipmentReconciliation{}, nil, shipmentrepo.ErrNotFound
	}
	result := entity.ApplyShipmentStatus(shipment, status, time.Now().UTC())
	if result.FirstDelivered && f.cascadeFails {
		result.CascadeFailed = true
	}
	return result, shipment, nil
}

type fakeCarrier struct {
	quote    *andreani.Quote
	quoteErr error
	resp     *andreani.ShipmentResponse
	respErr  error
	validSig bool
}

func (f *fakeCarrier) Quote(context.Context, andreani.QuoteRequest) (*andreani.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeCarrier) CreateShipment(context.Context, andreani.ShipmentRequest) (*andreani.ShipmentResponse, error) {
	return f.resp, f.respErr
}

func (f *fakeCarrier) VerifyWebhookSignature(string, []byte) bool {
	return f.validSig
}

func testConfig() config.Config {
	return config.Config{
		Store: config.Store{Currency: "ARS", FreeShippingThreshold: 300},
		Shipping: config.Shipping{
			Provider:         "andreani",
			OriginPostalCode: "1406",
			BaseCost:         50,
			CostPerKg:        10,
		},
	}
}

func processingOrder() *entity.Order {
	return &entity.Order{
		ID:              10,
		Number:          "ORD-A1",
		Status:          entity.OrderProcessing,
		PaymentStatus:   entity.PaymentPaid,
		Total:           250,
		ShippingAddress: &entity.OrderAddress{Name: "Ana", Line1: "Av. Siempre Viva 742", PostalCode: "5000", Phone: "11-5555"},
	}
}

func TestQuoteFromCarrier(t *testing.T) {
	carrier := &fakeCarrier{quote: &andreani.Quote{Amount: 80, Currency: "ARS", EstimatedDays: 3}}
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), carrier, nil, nil)

	quote, err := svc.Quote(context.Background(), "5000", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, "andreani", quote.Provider)
	assert.Equal(t, 80.0, quote.Amount)
	assert.Equal(t, 3, quote.EstimatedDays)
	assert.Equal(t, 300.0, quote.FreeShippingThreshold)
}

func TestQuoteFreeAboveThreshold(t *testing.T) {
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{quoteErr: assert.AnError}, nil, nil)

	quote, err := svc.Quote(context.Background(), "5000", 2, 400)
	require.NoError(t, err)
	assert.Equal(t, 0.0, quote.Amount, "threshold is reached without consulting the carrier")
}

func TestQuoteFallbackWhenCarrierFails(t *testing.T) {
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{quoteErr: assert.AnError}, nil, nil)

	quote, err := svc.Quote(context.Background(), "5000", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, FallbackProvider, quote.Provider)
	assert.Equal(t, 70.0, quote.Amount, "base cost plus per-kg rate")
}

func TestQuoteRequiresPostalCode(t *testing.T) {
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{}, nil, nil)

	_, err := svc.Quote(context.Background(), "", 1, 100)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestCreateShipment(t *testing.T) {
	eta := time.Now().Add(72 * time.Hour)
	carrier := &fakeCarrier{resp: &andreani.ShipmentResponse{
		TrackingNumber:    "AND0001",
		LabelURL:          "https://labels.example/AND0001.pdf",
		EstimatedDelivery: &eta,
	}}
	shipments := newFakeShipments()
	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, carrier, nil, nil)

	shipment, err := svc.CreateShipment(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, "AND0001", shipment.TrackingNumber)
	assert.Equal(t, entity.ShippingShipped, shipment.Status)
	require.NotNil(t, shipment.ShippedAt)
}

func TestCreateShipmentCarrierFailureMarksRow(t *testing.T) {
	carrier := &fakeCarrier{respErr: &andreani.ProviderError{Operation: "create shipment", StatusCode: 500, Body: "boom"}}
	shipments := newFakeShipments()
	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, carrier, nil, nil)

	_, err := svc.CreateShipment(context.Background(), 10, 2)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.CodeProviderError, appErr.Code())
	assert.Equal(t, int64(1), shipments.failedID, "shipment row should carry the failure marker")
	assert.Contains(t, shipments.failReason, "boom")
}

func TestCreateShipmentOrderNotReady(t *testing.T) {
	order := processingOrder()
	order.Status = entity.OrderPending
	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: order}}, newFakeShipments(), &fakeCarrier{}, nil, nil)

	_, err := svc.CreateShipment(context.Background(), 10, 2)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindConflict, appErr.Kind())
	assert.Equal(t, errorbank.CodeInvalidTransition, appErr.Code())
}

func TestCreateShipmentAlreadyExists(t *testing.T) {
	shipments := newFakeShipments()
	require.NoError(t, shipments.Create(context.Background(), &entity.Shipment{OrderID: 10}))
	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, &fakeCarrier{}, nil, nil)

	_, err := svc.CreateShipment(context.Background(), 10, 2)
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
}

func TestVerifyWebhook(t *testing.T) {
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{validSig: false}, nil, nil)
	err := svc.VerifyWebhook("bad", []byte(`{}`))
	assert.Equal(t, errorbank.CodeInvalidSignature, errorbank.From(err).Code())

	svc = NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{validSig: true}, nil, nil)
	assert.NoError(t, svc.VerifyWebhook("good", []byte(`{}`)))
}

func TestProcessUpdate(t *testing.T) {
	shipments := newFakeShipments()
	shipment := &entity.Shipment{OrderID: 10, Status: entity.ShippingShipped, TrackingNumber: "AND0001"}
	require.NoError(t, shipments.Create(context.Background(), shipment))
	shipments.byTracking["AND0001"] = shipment

	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, &fakeCarrier{}, nil, nil)

	result, err := svc.ProcessUpdate(context.Background(), CarrierUpdate{TrackingNumber: "AND0001", RawStatus: "En camino"})
	require.NoError(t, err)
	assert.True(t, result.Handled)
	assert.Equal(t, entity.ShippingInTransit, result.Status)
	assert.False(t, result.Delivered)
}

func TestProcessUpdateDelivered(t *testing.T) {
	shipments := newFakeShipments()
	shipment := &entity.Shipment{OrderID: 10, Status: entity.ShippingInTransit, TrackingNumber: "AND0001"}
	require.NoError(t, shipments.Create(context.Background(), shipment))
	shipments.byTracking["AND0001"] = shipment

	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, &fakeCarrier{}, nil, nil)

	first, err := svc.ProcessUpdate(context.Background(), CarrierUpdate{TrackingNumber: "AND0001", RawStatus: "Entregado"})
	require.NoError(t, err)
	assert.True(t, first.Delivered)

	second, err := svc.ProcessUpdate(context.Background(), CarrierUpdate{TrackingNumber: "AND0001", RawStatus: "Entregado"})
	require.NoError(t, err)
	assert.False(t, second.Delivered, "delivered cascade fires once")
}

func TestProcessUpdateDeliveredBeforeShippedKeepsStamp(t *testing.T) {
	shipments := newFakeShipments()
	shipments.cascadeFails = true
	shipment := &entity.Shipment{OrderID: 10, Status: entity.ShippingInTransit, TrackingNumber: "AND0001"}
	require.NoError(t, shipments.Create(context.Background(), shipment))
	shipments.byTracking["AND0001"] = shipment

	svc := NewService(testConfig(), &fakeOrders{orders: map[int64]*entity.Order{10: processingOrder()}}, shipments, &fakeCarrier{}, nil, nil)

	result, err := svc.ProcessUpdate(context.Background(), CarrierUpdate{TrackingNumber: "AND0001", RawStatus: "Entregado"})
	require.NoError(t, err)
	assert.True(t, result.Handled)
	assert.False(t, result.Delivered, "a failed order cascade must not announce delivery")
	assert.Equal(t, entity.ShippingDelivered, shipment.Status)
	require.NotNil(t, shipment.DeliveredAt, "the shipment keeps its delivered stamp")
}

func TestProcessUpdateUnknownTracking(t *testing.T) {
	svc := NewService(testConfig(), &fakeOrders{}, newFakeShipments(), &fakeCarrier{}, nil, nil)

	result, err := svc.ProcessUpdate(context.Background(), CarrierUpdate{TrackingNumber: "NOPE", RawStatus: "Entregado"})
	require.NoError(t, err)
	assert.False(t, result.Handled)
}
