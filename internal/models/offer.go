package models

// Offer — подмножество полей листинга офферов, которые реально нужны
// синхронизации цен/остатков. Остальные поля маркетплейса игнорируем.
type Offer struct {
	OfferID       int64          `json:"offer_id"`
	ShopSKU       string         `json:"shop_sku"`
	ProductSKU    string         `json:"product_sku"`
	ProductTitle  string         `json:"product_title,omitempty"`
	CategoryCode  string         `json:"category_code,omitempty"`
	CategoryLabel string         `json:"category_label,omitempty"`
	Price         float64        `json:"price"`
	TotalPrice    float64        `json:"total_price,omitempty"`
	Quantity      int            `json:"quantity"`
	StateCode     string         `json:"state_code"`
	Active        bool           `json:"active"`
	CurrencyCode  string         `json:"currency_code,omitempty"`
	LeadtimeDays  int            `json:"leadtime_to_ship,omitempty"`
	Discount      *OfferDiscount `json:"discount,omitempty"`
}

type OfferDiscount struct {
	Price     *float64 `json:"discount_price,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// OfferUpdate is the caller-facing description of a desired offer state.
// It is translated into exactly one line of the batch update request;
// Price goes through the charm-pricing normalizer before submission.
type OfferUpdate struct {
	OfferSKU  string  `json:"sku"`
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`

	// Optional discount window. StartDate/EndDate are included on the wire
	// only when non-nil (marketplace treats absent and null differently).
	DiscountPrice     *float64 `json:"discount_price,omitempty"`
	DiscountStartDate *string  `json:"discount_start_date,omitempty"`
	DiscountEndDate   *string  `json:"discount_end_date,omitempty"`
}
