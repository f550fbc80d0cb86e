package models

// Known marketplace order states we care about on the import side.
const (
	OrderStateWaitingAcceptance = "WAITING_ACCEPTANCE"
	OrderStateShipping          = "SHIPPING"
	OrderStateShipped           = "SHIPPED"
	OrderStateClosed            = "CLOSED"
)

type Order struct {
	OrderID         string          `json:"order_id"`
	State           string          `json:"order_state"`
	CreatedDate     string          `json:"created_date,omitempty"`
	CurrencyISOCode string          `json:"currency_iso_code,omitempty"`
	TotalPrice      float64         `json:"total_price"`
	Customer        Customer        `json:"customer"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Lines           []OrderLine     `json:"order_lines"`
}

type OrderLine struct {
	OrderLineID string  `json:"order_line_id"`
	State       string  `json:"order_line_state,omitempty"`
	OfferSKU    string  `json:"offer_sku"`
	Quantity    int     `json:"quantity"`
	PriceUnit   float64 `json:"price_unit,omitempty"`
	Price       float64 `json:"price,omitempty"`
}

type Customer struct {
	CustomerID string `json:"customer_id,omitempty"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
}

type ShippingAddress struct {
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Street1   string `json:"street_1"`
	Street2   string `json:"street_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}
