package ordersync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/MarketBox/internal/broker/messages"
	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeOrdersClient struct {
	pages    []marketplace.OrdersResult
	getErr   error
	queries  []marketplace.OrderQuery
	accepted map[string][]string
}

func (f *fakeOrdersClient) GetOrders(_ context.Context, q marketplace.OrderQuery) (marketplace.OrdersResult, error) {
	f.queries = append(f.queries, q)
	if f.getErr != nil {
		return marketplace.OrdersResult{}, f.getErr
	}
	idx := len(f.queries) - 1
	if idx >= len(f.pages) {
		return marketplace.OrdersResult{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeOrdersClient) AcceptOrder(_ context.Context, orderID string, lineIDs []string) error {
	if f.accepted == nil {
		f.accepted = make(map[string][]string)
	}
	f.accepted[orderID] = lineIDs
	return nil
}

type fakeRepo struct {
	freshFilter    func(orders []models.Order) []models.Order
	upserts        [][]models.Order
	upsertErr      error
	markedAccepted []string
}

func (f *fakeRepo) UpsertOrders(_ context.Context, _ string, orders []models.Order) ([]models.Order, error) {
	f.upserts = append(f.upserts, orders)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if f.freshFilter != nil {
		return f.freshFilter(orders), nil
	}
	return orders, nil
}

func (f *fakeRepo) MarkOrderAccepted(_ context.Context, _, orderID string) error {
	f.markedAccepted = append(f.markedAccepted, orderID)
	return nil
}

type published struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	published []published
	err       error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	f.published = append(f.published, published{topic: topic, key: string(key), value: value})
	return f.err
}

type fakeLimiter struct {
	allowed bool
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int64, _ time.Duration) (bool, int64, error) {
	f.keys = append(f.keys, key)
	if !f.allowed {
		return false, 121, nil
	}
	return true, 1, nil
}

func order(id, state string, lineIDs ...string) models.Order {
	o := models.Order{OrderID: id, State: state}
	for _, l := range lineIDs {
		o.Lines = append(o.Lines, models.OrderLine{OrderLineID: l})
	}
	return o
}

func TestSyncWithClient_PagesAndPublishes(t *testing.T) {
	client := &fakeOrdersClient{
		pages: []marketplace.OrdersResult{
			{
				Orders:     []models.Order{order("ord-1", models.OrderStateShipping), order("ord-2", models.OrderStateShipping)},
				TotalCount: 3,
				HasMore:    true,
				NextOffset: 2,
			},
			{
				Orders:     []models.Order{order("ord-3", models.OrderStateShipping)},
				TotalCount: 3,
			},
		},
	}
	repo := &fakeRepo{}
	producer := &fakeProducer{}
	limiter := &fakeLimiter{allowed: true}

	svc := New(nil, repo, producer, limiter, "orders.imported").
		WithSettings(time.Second, 2, models.OrderStateShipping, false, 10)

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.NoError(t, err)

	require.Len(t, client.queries, 2)
	require.Equal(t, 0, client.queries[0].Offset)
	require.Equal(t, 2, client.queries[0].Size)
	require.Equal(t, models.OrderStateShipping, client.queries[0].Status)
	require.Equal(t, 2, client.queries[1].Offset)

	require.Len(t, producer.published, 3)
	require.Equal(t, "orders.imported", producer.published[0].topic)
	require.Equal(t, "acme/ord-1", producer.published[0].key)

	var msg messages.OrderImported
	require.NoError(t, json.Unmarshal(producer.published[0].value, &msg))
	require.Equal(t, "acme", msg.Account)
	require.Equal(t, "ord-1", msg.OrderID)
	require.Equal(t, models.OrderStateShipping, msg.State)

	require.Len(t, limiter.keys, 1)

	st := svc.Stats()
	require.Equal(t, int64(3), st.TotalImported)
	require.Equal(t, int64(0), st.TotalErrors)
}

func TestSyncWithClient_PublishesOnlyFresh(t *testing.T) {
	client := &fakeOrdersClient{
		pages: []marketplace.OrdersResult{
			{
				Orders:     []models.Order{order("ord-1", models.OrderStateShipping), order("ord-2", models.OrderStateShipping)},
				TotalCount: 2,
			},
		},
	}
	repo := &fakeRepo{
		freshFilter: func(orders []models.Order) []models.Order {
			// ord-1 уже была в базе.
			return orders[1:]
		},
	}
	producer := &fakeProducer{}

	svc := New(nil, repo, producer, &fakeLimiter{allowed: true}, "orders.imported")

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.NoError(t, err)

	require.Len(t, producer.published, 1)
	require.Equal(t, "acme/ord-2", producer.published[0].key)
	require.Equal(t, int64(1), svc.Stats().TotalImported)
}

func TestSyncWithClient_AutoAccept(t *testing.T) {
	client := &fakeOrdersClient{
		pages: []marketplace.OrdersResult{
			{
				Orders: []models.Order{
					order("ord-1", models.OrderStateWaitingAcceptance, "ord-1-1", "ord-1-2"),
					order("ord-2", models.OrderStateShipping, "ord-2-1"),
				},
				TotalCount: 2,
			},
		},
	}
	repo := &fakeRepo{}
	svc := New(nil, repo, &fakeProducer{}, &fakeLimiter{allowed: true}, "orders.imported").
		WithSettings(0, 0, "", true, 0)

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.NoError(t, err)

	require.Len(t, client.accepted, 1)
	require.Equal(t, []string{"ord-1-1", "ord-1-2"}, client.accepted["ord-1"])
	require.Equal(t, []string{"ord-1"}, repo.markedAccepted)
	require.Equal(t, int64(1), svc.Stats().TotalAccepted)
}

func TestSyncWithClient_RateLimited(t *testing.T) {
	client := &fakeOrdersClient{}
	svc := New(nil, &fakeRepo{}, &fakeProducer{}, &fakeLimiter{allowed: false}, "orders.imported")

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.NoError(t, err)
	require.Empty(t, client.queries)
}

func TestSyncWithClient_GetOrdersError(t *testing.T) {
	client := &fakeOrdersClient{getErr: errors.New("boom")}
	repo := &fakeRepo{}
	svc := New(nil, repo, &fakeProducer{}, &fakeLimiter{allowed: true}, "orders.imported")

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.Error(t, err)
	require.Empty(t, repo.upserts)
}

func TestSyncWithClient_PublishErrorDoesNotFailCycle(t *testing.T) {
	client := &fakeOrdersClient{
		pages: []marketplace.OrdersResult{
			{Orders: []models.Order{order("ord-1", models.OrderStateShipping)}, TotalCount: 1},
		},
	}
	producer := &fakeProducer{err: errors.New("kafka down")}
	svc := New(nil, &fakeRepo{}, producer, &fakeLimiter{allowed: true}, "orders.imported")

	err := svc.syncWithClient(context.Background(), "acme", client)
	require.NoError(t, err)
	require.Len(t, producer.published, 1)
}
