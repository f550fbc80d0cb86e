package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// Client — клиент одного аккаунта маркетплейса (Mirakl-совместимый API).
// После конструирования не мутируется, можно дёргать из разных горутин.
type Client struct {
	account string
	baseURL string
	apiKey  string
	httpc   *http.Client

	carrierCodes map[models.ShippingCarrier]string
	urls         TrackingURLGenerator
	resolver     CarrierResolver

	maxAttempts int
	pageSize    int
	sleep       func(time.Duration)
}

func New(account, baseURL, apiKey string) *Client {
	return &Client{
		account: account,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		carrierCodes: map[models.ShippingCarrier]string{},
		urls:         DefaultTrackingURLs{},
		resolver:     DefaultCarrierResolver{},
		maxAttempts:  defaultMaxAttempts,
		pageSize:     defaultPageSize,
		sleep:        time.Sleep,
	}
}

// WithCarrierCodes задаёт carrier_code маппинг этого аккаунта. Перевозчики
// из маппинга уходят на провод формой carrier_code, остальные — name+url.
func (c *Client) WithCarrierCodes(codes map[models.ShippingCarrier]string) *Client {
	for carrier, code := range codes {
		c.carrierCodes[carrier] = code
	}
	return c
}

func (c *Client) WithTrackingURLs(g TrackingURLGenerator) *Client {
	if g != nil {
		c.urls = g
	}
	return c
}

func (c *Client) WithCarrierResolver(r CarrierResolver) *Client {
	if r != nil {
		c.resolver = r
	}
	return c
}

func (c *Client) WithHTTPClient(httpc *http.Client) *Client {
	if httpc != nil {
		c.httpc = httpc
	}
	return c
}

func (c *Client) Account() string { return c.account }

type OrderQuery struct {
	Offset int
	Size   int
	// Status filters by order_state_codes when non-empty.
	Status   string
	OrderIDs []string
}

type OrdersResult struct {
	Orders     []models.Order
	TotalCount int
	HasMore    bool
	NextOffset int
}

// GetOrders возвращает ОДНУ страницу заказов. HasMore считается от
// total_count сервера, NextOffset — просто offset+size.
func (c *Client) GetOrders(ctx context.Context, q OrderQuery) (OrdersResult, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("max", strconv.Itoa(q.Size))
	if len(q.OrderIDs) > 0 {
		params.Set("order_ids", strings.Join(q.OrderIDs, ","))
	}
	if q.Status != "" {
		params.Set("order_state_codes", q.Status)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/orders", params, nil)
	if err != nil {
		return OrdersResult{}, err
	}

	var resp struct {
		Orders     []models.Order `json:"orders"`
		TotalCount int            `json:"total_count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrdersResult{}, errors.Wrap(err, "decode orders")
	}

	return OrdersResult{
		Orders:     resp.Orders,
		TotalCount: resp.TotalCount,
		HasMore:    resp.TotalCount > q.Offset+q.Size,
		NextOffset: q.Offset + q.Size,
	}, nil
}

// AcceptOrder помечает все перечисленные строки заказа принятыми.
func (c *Client) AcceptOrder(ctx context.Context, orderID string, lineIDs []string) error {
	type acceptLine struct {
		Accepted bool   `json:"accepted"`
		ID       string `json:"id"`
	}
	lines := make([]acceptLine, 0, len(lineIDs))
	for _, id := range lineIDs {
		lines = append(lines, acceptLine{Accepted: true, ID: id})
	}

	payload := map[string]any{"order_lines": lines}
	_, err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(orderID)+"/accept", nil, payload)
	return err
}

type OfferQuery struct {
	Offset int
	Max    int

	StateCodes         string
	SKU                string
	ProductID          string
	Favorite           *bool
	PricingChannelCode string
	ShopID             *int64
}

func (q OfferQuery) values() url.Values {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("max", strconv.Itoa(q.Max))
	if q.StateCodes != "" {
		params.Set("offer_state_codes", q.StateCodes)
	}
	if q.SKU != "" {
		params.Set("sku", q.SKU)
	}
	if q.ProductID != "" {
		params.Set("product_id", q.ProductID)
	}
	if q.Favorite != nil {
		params.Set("favorite", strconv.FormatBool(*q.Favorite))
	}
	if q.PricingChannelCode != "" {
		params.Set("pricing_channel_code", q.PricingChannelCode)
	}
	if q.ShopID != nil {
		params.Set("shop_id", strconv.FormatInt(*q.ShopID, 10))
	}
	return params
}

type OffersPage struct {
	Offers     []models.Offer
	TotalCount int
}

// GetOffers возвращает одну страницу офферов. Листинг — самый "тяжёлый"
// endpoint по лимитам, поэтому он обёрнут в retry на 429.
func (c *Client) GetOffers(ctx context.Context, q OfferQuery) (OffersPage, error) {
	var page OffersPage
	err := c.withRetry(ctx, func(ctx context.Context) error {
		body, err := c.do(ctx, http.MethodGet, "/api/offers", q.values(), nil)
		if err != nil {
			return err
		}

		var resp struct {
			Offers     []models.Offer `json:"offers"`
			TotalCount int            `json:"total_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return errors.Wrap(err, "decode offers")
		}
		page = OffersPage{Offers: resp.Offers, TotalCount: resp.TotalCount}
		return nil
	})
	if err != nil {
		return OffersPage{}, err
	}
	return page, nil
}

// GetAllOffers выкачивает все офферы аккаунта страницами по pageSize.
func (c *Client) GetAllOffers(ctx context.Context) ([]models.Offer, error) {
	return fetchAll(ctx, c.pageSize, func(ctx context.Context, offset, limit int) ([]models.Offer, int, error) {
		page, err := c.GetOffers(ctx, OfferQuery{Offset: offset, Max: limit})
		if err != nil {
			return nil, 0, err
		}
		return page.Offers, page.TotalCount, nil
	})
}

type offerUpdateLine struct {
	Price     float64          `json:"price"`
	ShopSKU   string           `json:"shop_sku"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Discount  *offerLineDiscnt `json:"discount,omitempty"`
}

type offerLineDiscnt struct {
	Price     float64 `json:"price"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

// UpdateOffers отправляет батч изменений офферов одним POST. Цены проходят
// через charm-pricing нормализатор; скидочное окно попадает на провод только
// когда соответствующие поля заданы. Возвращает import_id сервера (0, если
// сервер его не прислал). Батч атомарен на уровне запроса: полинейный
// результат обработки остаётся на стороне маркетплейса.
func (c *Client) UpdateOffers(ctx context.Context, updates []models.OfferUpdate) (int64, error) {
	lines := make([]offerUpdateLine, 0, len(updates))
	for _, u := range updates {
		line := offerUpdateLine{
			Price:     RoundUpToNearestNine(u.Price),
			ShopSKU:   u.OfferSKU,
			ProductID: u.ProductID,
			Quantity:  u.Quantity,
		}
		if u.DiscountPrice != nil {
			line.Discount = &offerLineDiscnt{Price: *u.DiscountPrice}
			if u.DiscountStartDate != nil {
				line.Discount.StartDate = u.DiscountStartDate
			}
			if u.DiscountEndDate != nil {
				line.Discount.EndDate = u.DiscountEndDate
			}
		}
		lines = append(lines, line)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/offers", nil, map[string]any{"offers": lines})
	if err != nil {
		return 0, err
	}

	var resp struct {
		ImportID int64 `json:"import_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrap(err, "decode offers import")
	}
	return resp.ImportID, nil
}

// PutTracking передаёт маркетплейсу трек-номер заказа. Если carrier пустой,
// перевозчик определяется резолвером аккаунта по трек-номеру.
func (c *Client) PutTracking(ctx context.Context, orderID, trackingNumber string, carrier models.ShippingCarrier) error {
	if carrier == "" {
		resolved, err := c.resolver.Resolve(trackingNumber, orderID)
		if err != nil {
			return err
		}
		carrier = resolved
	}

	payload, err := c.buildTrackingPayload(carrier, trackingNumber)
	if err != nil {
		return err
	}

	return c.withRetry(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(orderID)+"/tracking", nil, payload)
		return err
	})
}

type ShipConfirmationResult string

const (
	ShipConfirmed           ShipConfirmationResult = "CONFIRMED"
	ShipPreviouslyConfirmed ShipConfirmationResult = "PREVIOUSLY_CONFIRMED"
)

// Маркетплейс отвечает на повторное подтверждение отгрузки ошибкой вида
// "... Current status is SHIPPED ...". Для нас это идемпотентный успех.
const previouslyConfirmedMarker = "Current status is"

// PutShipConfirmation подтверждает отгрузку заказа. Повторное подтверждение
// сворачивается в ShipPreviouslyConfirmed; любая другая ошибка уходит наверх.
func (c *Client) PutShipConfirmation(ctx context.Context, orderID string) (ShipConfirmationResult, error) {
	result := ShipConfirmed
	err := c.withRetry(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(orderID)+"/ship", nil, nil)
		if err == nil {
			result = ShipConfirmed
			return nil
		}

		var te *TransportError
		if errors.As(err, &te) && !te.RateLimited() && alreadyShipped(te.Body) {
			result = ShipPreviouslyConfirmed
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func alreadyShipped(body []byte) bool {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return strings.Contains(resp.Message, previouslyConfirmedMarker)
}

// do делает один HTTP вызов. Любой не-2xx превращается в *TransportError
// с телом и Retry-After — решение о повторе принимает вызывающий код.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{
			Status:     resp.StatusCode,
			Body:       body,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}
	return body, nil
}
