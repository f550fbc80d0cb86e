package shipsync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/MarketBox/internal/broker/messages"
	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// ShippingClient — срез marketplace.Client для отгрузок.
type ShippingClient interface {
	PutTracking(ctx context.Context, orderID, trackingNumber string, carrier models.ShippingCarrier) error
	PutShipConfirmation(ctx context.Context, orderID string) (marketplace.ShipConfirmationResult, error)
}

type Clients interface {
	Client(name string) (*marketplace.Client, bool)
}

type Repository interface {
	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
	MarkShipmentPushed(ctx context.Context, id uint64) error
	MarkShipmentFailed(ctx context.Context, id uint64, pushErr string, nextAttemptAt time.Time) error
}

// Лестница повторов после неудачного пуша. Безнадёжные конфигурационные
// ошибки (ErrInvalidTrackingPayload и т.п.) всё равно остаются в базе со
// статусом FAILED — их видно и можно чинить руками.
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

func backoffDelay(failCount int32) time.Duration {
	if failCount < 1 {
		failCount = 1
	}
	if int(failCount) > len(retryBackoff) {
		return retryBackoff[len(retryBackoff)-1]
	}
	return retryBackoff[failCount-1]
}

// Service проталкивает отгрузки в маркетплейс: заявки приходят из кафки,
// копятся в постгресе и выгребаются циклом с lease'ом — как в поллере
// трекингов, только наружу, а не внутрь.
type Service struct {
	clients Clients
	repo    Repository

	pollInterval time.Duration
	batchSize    int
	lease        time.Duration

	triggerCh chan struct{}

	totalRequested atomic.Int64
	totalPushed    atomic.Int64
	totalErrors    atomic.Int64
	lastErrorMu    sync.Mutex
	lastError      string
}

func New(clients Clients, repo Repository) *Service {
	return &Service{
		clients: clients,
		repo:    repo,

		pollInterval: 5 * time.Second,
		batchSize:    50,
		lease:        120 * time.Second,

		triggerCh: make(chan struct{}, 1),
	}
}

func (s *Service) WithSettings(pollInterval time.Duration, batchSize int, lease time.Duration) *Service {
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if lease > 0 {
		s.lease = lease
	}
	return s
}

// Trigger forces an immediate push cycle (best-effort, non-blocking).
func (s *Service) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	TotalRequested int64  `json:"totalRequested"`
	TotalPushed    int64  `json:"totalPushed"`
	TotalErrors    int64  `json:"totalErrors"`
	LastError      string `json:"lastError,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		TotalRequested: s.totalRequested.Load(),
		TotalPushed:    s.totalPushed.Load(),
		TotalErrors:    s.totalErrors.Load(),
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// HandleShipmentRequested — обработчик сообщений из кафки. Просто кладёт
// заявку в базу; сам пуш делает Run-цикл.
func (s *Service) HandleShipmentRequested(ctx context.Context, key, value []byte) error {
	var msg messages.ShipmentRequested
	if err := json.Unmarshal(value, &msg); err != nil {
		return errors.Wrap(err, "decode shipment requested")
	}

	_, err := s.repo.CreateShipment(ctx, models.ShipmentCreateInput{
		Account:        msg.Account,
		OrderID:        msg.OrderID,
		TrackingNumber: msg.TrackingNumber,
		Carrier:        carrierFromMessage(msg.Carrier),
	})
	if err != nil {
		return errors.Wrap(err, "create shipment")
	}
	s.totalRequested.Add(1)
	s.Trigger()
	return nil
}

// Пустой перевозчик остаётся пустым: его определит резолвер клиента по
// трек-номеру при пуше.
func carrierFromMessage(v string) models.ShippingCarrier {
	if v == "" {
		return ""
	}
	return models.CarrierFromString(v)
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
	now := time.Now().UTC()

	due, err := s.repo.ClaimDueShipments(ctx, now, s.batchSize, s.lease)
	if err != nil {
		s.recordError(err)
		slog.Error("claim due shipments", "error", err.Error())
		return
	}

	for _, sh := range due {
		if err := s.pushOne(ctx, sh); err != nil {
			s.recordError(err)
			slog.Error("push shipment", "shipment_id", sh.ID, "account", sh.Account, "order_id", sh.OrderID, "error", err.Error())

			next := time.Now().UTC().Add(backoffDelay(sh.PushFailCount + 1))
			if markErr := s.repo.MarkShipmentFailed(ctx, sh.ID, err.Error(), next); markErr != nil {
				slog.Error("mark shipment failed", "shipment_id", sh.ID, "error", markErr.Error())
			}
			continue
		}

		s.totalPushed.Add(1)
		if err := s.repo.MarkShipmentPushed(ctx, sh.ID); err != nil {
			slog.Error("mark shipment pushed", "shipment_id", sh.ID, "error", err.Error())
		}
	}
}

func (s *Service) pushOne(ctx context.Context, sh *models.Shipment) error {
	client, ok := s.clients.Client(sh.Account)
	if !ok {
		return errors.Errorf("no client for account %q", sh.Account)
	}
	return s.pushWithClient(ctx, client, sh)
}

func (s *Service) pushWithClient(ctx context.Context, client ShippingClient, sh *models.Shipment) error {
	if err := client.PutTracking(ctx, sh.OrderID, sh.TrackingNumber, sh.Carrier); err != nil {
		return errors.Wrap(err, "put tracking")
	}

	res, err := client.PutShipConfirmation(ctx, sh.OrderID)
	if err != nil {
		return errors.Wrap(err, "put ship confirmation")
	}
	if res == marketplace.ShipPreviouslyConfirmed {
		// Уже подтверждали (например, после падения между PUT'ами) — это успех.
		slog.Info("shipment previously confirmed", "account", sh.Account, "order_id", sh.OrderID)
	}
	return nil
}

func (s *Service) recordError(err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
