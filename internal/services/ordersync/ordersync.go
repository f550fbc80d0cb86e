package ordersync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/MarketBox/internal/broker/messages"
	"github.com/BearBump/MarketBox/internal/cache/rediscache"
	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// OrdersClient — срез marketplace.Client, который нужен импорту.
type OrdersClient interface {
	GetOrders(ctx context.Context, q marketplace.OrderQuery) (marketplace.OrdersResult, error)
	AcceptOrder(ctx context.Context, orderID string, lineIDs []string) error
}

// Clients — срез marketplace.Registry.
type Clients interface {
	Accounts() []string
	Client(name string) (*marketplace.Client, bool)
}

type Repository interface {
	UpsertOrders(ctx context.Context, account string, orders []models.Order) ([]models.Order, error)
	MarkOrderAccepted(ctx context.Context, account, orderID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Service периодически забирает свежие заказы из каждого аккаунта
// маркетплейса, складывает их в постгрес, публикует OrderImported для новых
// и (опционально) сразу принимает заказы в WAITING_ACCEPTANCE.
type Service struct {
	clients  Clients
	repo     Repository
	producer Producer
	rl       RateLimiter

	topic string

	pollInterval time.Duration
	pageSize     int
	importStates string
	autoAccept   bool

	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano  int64
	lastCycleUnixNano  atomic.Int64
	totalImported      atomic.Int64
	totalAccepted      atomic.Int64
	totalErrors        atomic.Int64
	lastErrorMu        sync.Mutex
	lastError          string
}

func New(clients Clients, repo Repository, producer Producer, rl RateLimiter, topic string) *Service {
	return &Service{
		clients:  clients,
		repo:     repo,
		producer: producer,
		rl:       rl,
		topic:    topic,

		pollInterval:       30 * time.Second,
		pageSize:           100,
		importStates:       models.OrderStateWaitingAcceptance + "," + models.OrderStateShipping,
		rateLimitPerMinute: 120,

		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Service) WithSettings(pollInterval time.Duration, pageSize int, importStates string, autoAccept bool, rlPerMin int64) *Service {
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	if importStates != "" {
		s.importStates = importStates
	}
	s.autoAccept = autoAccept
	if rlPerMin > 0 {
		s.rateLimitPerMinute = rlPerMin
	}
	return s
}

// Trigger forces an immediate import cycle (best-effort, non-blocking).
func (s *Service) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	TotalImported int64      `json:"totalImported"`
	TotalAccepted int64      `json:"totalAccepted"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalImported: s.totalImported.Load(),
		TotalAccepted: s.totalAccepted.Load(),
		TotalErrors:   s.totalErrors.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	s.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	for _, account := range s.clients.Accounts() {
		if err := s.syncAccount(ctx, account); err != nil {
			s.totalErrors.Add(1)
			s.lastErrorMu.Lock()
			s.lastError = err.Error()
			s.lastErrorMu.Unlock()
			slog.Error("sync account", "account", account, "error", err.Error())
		}
	}
}

func (s *Service) syncAccount(ctx context.Context, account string) error {
	client, ok := s.clients.Client(account)
	if !ok {
		return errors.Errorf("no client for account %q", account)
	}
	return s.syncWithClient(ctx, account, client)
}

func (s *Service) syncWithClient(ctx context.Context, account string, client OrdersClient) error {
	now := time.Now().UTC()
	if s.rl != nil && s.rateLimitPerMinute > 0 {
		key := rediscache.AccountWindowKey(account, now)
		allowed, n, err := s.rl.Allow(ctx, key, s.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			// Свой лимит лучше чужого 429: просто пропускаем цикл аккаунта.
			slog.Warn("rate limit exceeded, skipping cycle", "account", account, "count", n)
			return nil
		}
	}

	offset := 0
	for {
		res, err := client.GetOrders(ctx, marketplace.OrderQuery{
			Offset: offset,
			Size:   s.pageSize,
			Status: s.importStates,
		})
		if err != nil {
			return errors.Wrap(err, "get orders")
		}

		fresh, err := s.repo.UpsertOrders(ctx, account, res.Orders)
		if err != nil {
			return errors.Wrap(err, "upsert orders")
		}
		s.totalImported.Add(int64(len(fresh)))

		for _, o := range fresh {
			if err := s.publishImported(ctx, account, o); err != nil {
				slog.Error("publish order imported", "account", account, "order_id", o.OrderID, "error", err.Error())
			}
			if s.autoAccept && o.State == models.OrderStateWaitingAcceptance {
				if err := s.acceptOrder(ctx, account, client, o); err != nil {
					slog.Error("auto-accept order", "account", account, "order_id", o.OrderID, "error", err.Error())
				}
			}
		}

		if !res.HasMore {
			return nil
		}
		offset = res.NextOffset
	}
}

func (s *Service) publishImported(ctx context.Context, account string, o models.Order) error {
	msg := messages.OrderImported{
		Account:    account,
		OrderID:    o.OrderID,
		State:      o.State,
		ImportedAt: time.Now().UTC(),
		Order:      o,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal order imported")
	}
	return s.producer.Publish(ctx, s.topic, []byte(account+"/"+o.OrderID), b)
}

func (s *Service) acceptOrder(ctx context.Context, account string, client OrdersClient, o models.Order) error {
	lineIDs := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		lineIDs = append(lineIDs, l.OrderLineID)
	}
	if len(lineIDs) == 0 {
		return nil
	}
	if err := client.AcceptOrder(ctx, o.OrderID, lineIDs); err != nil {
		return err
	}
	s.totalAccepted.Add(1)
	return s.repo.MarkOrderAccepted(ctx, account, o.OrderID)
}
