package marketplace

import (
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// AccountConfig — всё, что нужно для клиента одного аккаунта. Переопределения
// (carrier codes, генератор ссылок, резолвер) опциональны.
type AccountConfig struct {
	BaseURL string
	APIKey  string

	CarrierCodes map[models.ShippingCarrier]string
	TrackingURLs TrackingURLGenerator
	Resolver     CarrierResolver
}

// Registry держит по одному Client на аккаунт. Строится один раз на старте
// и дальше только читается.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry(accounts map[string]AccountConfig) (*Registry, error) {
	clients := make(map[string]*Client, len(accounts))
	for name, cfg := range accounts {
		if cfg.BaseURL == "" {
			return nil, errors.Errorf("account %q: base url is required", name)
		}
		if cfg.APIKey == "" {
			return nil, errors.Errorf("account %q: api key is required", name)
		}
		clients[name] = New(name, cfg.BaseURL, cfg.APIKey).
			WithCarrierCodes(cfg.CarrierCodes).
			WithTrackingURLs(cfg.TrackingURLs).
			WithCarrierResolver(cfg.Resolver)
	}
	return &Registry{clients: clients}, nil
}

// Client возвращает клиента аккаунта. Отсутствие имени — не ошибка,
// просто comma-ok.
func (r *Registry) Client(name string) (*Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Accounts возвращает имена всех сконфигурированных аккаунтов.
func (r *Registry) Accounts() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
