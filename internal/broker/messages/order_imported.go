package messages

import (
	"time"

	"github.com/BearBump/MarketBox/internal/models"
)

// OrderImported публикуется после того, как заказ маркетплейса впервые
// попал в нашу базу. Потребители — внутренние системы фулфилмента.
type OrderImported struct {
	Account    string       `json:"account"`
	OrderID    string       `json:"order_id"`
	State      string       `json:"state"`
	ImportedAt time.Time    `json:"imported_at"`
	Order      models.Order `json:"order"`
}
