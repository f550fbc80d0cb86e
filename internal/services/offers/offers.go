package offers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/MarketBox/internal/cache"
	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// OffersClient — срез marketplace.Client для работы с офферами.
type OffersClient interface {
	GetAllOffers(ctx context.Context) ([]models.Offer, error)
	UpdateOffers(ctx context.Context, updates []models.OfferUpdate) (int64, error)
}

type Clients interface {
	Client(name string) (*marketplace.Client, bool)
}

// Service отдаёт полный список офферов аккаунта через кеш: выгрузка всех
// страниц из маркетплейса дорогая, TTL держит её свежей, а любое обновление
// цен сбрасывает кеш аккаунта.
type Service struct {
	clients Clients
	cache   cache.BytesCache
	ttl     time.Duration
}

func New(clients Clients, c cache.BytesCache) *Service {
	return &Service{
		clients: clients,
		cache:   c,
		ttl:     5 * time.Minute,
	}
}

func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func cacheKey(account string) string {
	return fmt.Sprintf("offers:%s", account)
}

// All returns every offer of the account, served from cache when possible.
func (s *Service) All(ctx context.Context, account string) ([]models.Offer, error) {
	client, ok := s.clients.Client(account)
	if !ok {
		return nil, errors.Errorf("no client for account %q", account)
	}
	return s.allWithClient(ctx, account, client)
}

func (s *Service) allWithClient(ctx context.Context, account string, client OffersClient) ([]models.Offer, error) {
	key := cacheKey(account)

	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			// Кеш не критичен, идём мимо него.
			slog.Warn("offers cache get", "account", account, "error", err.Error())
		} else if ok {
			var offers []models.Offer
			if err := json.Unmarshal(b, &offers); err == nil {
				return offers, nil
			}
			slog.Warn("offers cache decode, dropping entry", "account", account)
			_ = s.cache.Del(ctx, key)
		}
	}

	offers, err := client.GetAllOffers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get all offers")
	}

	if s.cache != nil {
		if b, err := json.Marshal(offers); err == nil {
			if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
				slog.Warn("offers cache set", "account", account, "error", err.Error())
			}
		}
	}
	return offers, nil
}

// Update pushes price/quantity updates and invalidates the account cache.
func (s *Service) Update(ctx context.Context, account string, updates []models.OfferUpdate) (int64, error) {
	client, ok := s.clients.Client(account)
	if !ok {
		return 0, errors.Errorf("no client for account %q", account)
	}
	return s.updateWithClient(ctx, account, client, updates)
}

func (s *Service) updateWithClient(ctx context.Context, account string, client OffersClient, updates []models.OfferUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, errors.New("no offer updates")
	}

	importID, err := client.UpdateOffers(ctx, updates)
	if err != nil {
		return 0, errors.Wrap(err, "update offers")
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(account)); err != nil {
			slog.Warn("offers cache invalidate", "account", account, "error", err.Error())
		}
	}
	return importID, nil
}
