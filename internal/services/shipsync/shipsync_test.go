package shipsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type trackingCall struct {
	orderID        string
	trackingNumber string
	carrier        models.ShippingCarrier
}

type fakeShippingClient struct {
	trackingCalls []trackingCall
	trackingErr   error

	confirmCalls  []string
	confirmResult marketplace.ShipConfirmationResult
	confirmErr    error
}

func (f *fakeShippingClient) PutTracking(_ context.Context, orderID, trackingNumber string, carrier models.ShippingCarrier) error {
	f.trackingCalls = append(f.trackingCalls, trackingCall{orderID: orderID, trackingNumber: trackingNumber, carrier: carrier})
	return f.trackingErr
}

func (f *fakeShippingClient) PutShipConfirmation(_ context.Context, orderID string) (marketplace.ShipConfirmationResult, error) {
	f.confirmCalls = append(f.confirmCalls, orderID)
	if f.confirmErr != nil {
		return "", f.confirmErr
	}
	if f.confirmResult == "" {
		return marketplace.ShipConfirmed, nil
	}
	return f.confirmResult, nil
}

type failedMark struct {
	id      uint64
	pushErr string
	nextAt  time.Time
}

type fakeShipRepo struct {
	created   []models.ShipmentCreateInput
	createErr error

	due      []*models.Shipment
	claimErr error

	pushed []uint64
	failed []failedMark
}

func (f *fakeShipRepo) CreateShipment(_ context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	f.created = append(f.created, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Shipment{ID: uint64(len(f.created)), Account: in.Account, OrderID: in.OrderID}, nil
}

func (f *fakeShipRepo) ClaimDueShipments(_ context.Context, _ time.Time, _ int, _ time.Duration) ([]*models.Shipment, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	due := f.due
	f.due = nil
	return due, nil
}

func (f *fakeShipRepo) MarkShipmentPushed(_ context.Context, id uint64) error {
	f.pushed = append(f.pushed, id)
	return nil
}

func (f *fakeShipRepo) MarkShipmentFailed(_ context.Context, id uint64, pushErr string, nextAttemptAt time.Time) error {
	f.failed = append(f.failed, failedMark{id: id, pushErr: pushErr, nextAt: nextAttemptAt})
	return nil
}

type fakeClients struct {
	clients map[string]*marketplace.Client
}

func (f *fakeClients) Client(name string) (*marketplace.Client, bool) {
	c, ok := f.clients[name]
	return c, ok
}

func TestHandleShipmentRequested(t *testing.T) {
	repo := &fakeShipRepo{}
	svc := New(&fakeClients{}, repo)

	body, err := json.Marshal(map[string]string{
		"account":         "acme",
		"order_id":        "ord-1",
		"tracking_number": "1Z999",
		"carrier":         "ups",
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleShipmentRequested(context.Background(), []byte("acme/ord-1"), body))

	require.Len(t, repo.created, 1)
	require.Equal(t, "acme", repo.created[0].Account)
	require.Equal(t, "ord-1", repo.created[0].OrderID)
	require.Equal(t, "1Z999", repo.created[0].TrackingNumber)
	require.Equal(t, models.CarrierUPS, repo.created[0].Carrier)
	require.Equal(t, int64(1), svc.Stats().TotalRequested)

	// Trigger должен быть взведён.
	select {
	case <-svc.triggerCh:
	default:
		t.Fatal("expected pending trigger")
	}
}

func TestHandleShipmentRequested_EmptyCarrierStaysEmpty(t *testing.T) {
	repo := &fakeShipRepo{}
	svc := New(&fakeClients{}, repo)

	body, err := json.Marshal(map[string]string{
		"account":         "acme",
		"order_id":        "ord-1",
		"tracking_number": "1Z999",
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleShipmentRequested(context.Background(), nil, body))
	require.Len(t, repo.created, 1)
	require.Equal(t, models.ShippingCarrier(""), repo.created[0].Carrier)
}

func TestHandleShipmentRequested_BadPayload(t *testing.T) {
	svc := New(&fakeClients{}, &fakeShipRepo{})
	err := svc.HandleShipmentRequested(context.Background(), nil, []byte("{not json"))
	require.Error(t, err)
}

func TestPushWithClient_Success(t *testing.T) {
	client := &fakeShippingClient{}
	svc := New(&fakeClients{}, &fakeShipRepo{})

	sh := &models.Shipment{ID: 7, Account: "acme", OrderID: "ord-1", TrackingNumber: "1Z999", Carrier: models.CarrierUPS}
	require.NoError(t, svc.pushWithClient(context.Background(), client, sh))

	require.Len(t, client.trackingCalls, 1)
	require.Equal(t, "ord-1", client.trackingCalls[0].orderID)
	require.Equal(t, "1Z999", client.trackingCalls[0].trackingNumber)
	require.Equal(t, models.CarrierUPS, client.trackingCalls[0].carrier)
	require.Equal(t, []string{"ord-1"}, client.confirmCalls)
}

func TestPushWithClient_PreviouslyConfirmedIsSuccess(t *testing.T) {
	client := &fakeShippingClient{confirmResult: marketplace.ShipPreviouslyConfirmed}
	svc := New(&fakeClients{}, &fakeShipRepo{})

	sh := &models.Shipment{ID: 7, Account: "acme", OrderID: "ord-1", TrackingNumber: "1Z999", Carrier: models.CarrierUPS}
	require.NoError(t, svc.pushWithClient(context.Background(), client, sh))
}

func TestPushWithClient_TrackingErrorStopsConfirmation(t *testing.T) {
	client := &fakeShippingClient{trackingErr: errors.New("boom")}
	svc := New(&fakeClients{}, &fakeShipRepo{})

	sh := &models.Shipment{ID: 7, Account: "acme", OrderID: "ord-1", TrackingNumber: "1Z999", Carrier: models.CarrierUPS}
	err := svc.pushWithClient(context.Background(), client, sh)
	require.Error(t, err)
	require.Empty(t, client.confirmCalls)
}

func TestRunOnce_UnknownAccountMarksFailed(t *testing.T) {
	repo := &fakeShipRepo{
		due: []*models.Shipment{
			{ID: 3, Account: "ghost", OrderID: "ord-1", TrackingNumber: "1Z999"},
		},
	}
	svc := New(&fakeClients{}, repo)

	before := time.Now().UTC()
	svc.runOnce(context.Background())

	require.Empty(t, repo.pushed)
	require.Len(t, repo.failed, 1)
	require.Equal(t, uint64(3), repo.failed[0].id)
	require.Contains(t, repo.failed[0].pushErr, "ghost")
	require.True(t, repo.failed[0].nextAt.After(before))
	require.Equal(t, int64(1), svc.Stats().TotalErrors)
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, time.Minute, backoffDelay(0))
	require.Equal(t, time.Minute, backoffDelay(1))
	require.Equal(t, 5*time.Minute, backoffDelay(2))
	require.Equal(t, 15*time.Minute, backoffDelay(3))
	require.Equal(t, 60*time.Minute, backoffDelay(4))
	require.Equal(t, 60*time.Minute, backoffDelay(10))
}
