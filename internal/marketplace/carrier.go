package marketplace

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BearBump/MarketBox/internal/models"
	"github.com/pkg/errors"
)

// CarrierResolver classifies a tracking number (optionally using the
// marketplace order reference) into a carrier identity. Must be a pure
// function of its inputs.
type CarrierResolver interface {
	Resolve(trackingNumber, orderRef string) (models.ShippingCarrier, error)
}

// ResolverFunc adapts a plain function to CarrierResolver.
type ResolverFunc func(trackingNumber, orderRef string) (models.ShippingCarrier, error)

func (f ResolverFunc) Resolve(trackingNumber, orderRef string) (models.ShippingCarrier, error) {
	return f(trackingNumber, orderRef)
}

// DefaultCarrierResolver знает только UPS: трек-номера UPS всегда начинаются
// с "1Z". Всё остальное — ErrCarrierNotFound; интеграции с другими
// перевозчиками вешают свой резолвер на аккаунт.
type DefaultCarrierResolver struct{}

func (DefaultCarrierResolver) Resolve(trackingNumber, _ string) (models.ShippingCarrier, error) {
	if strings.HasPrefix(trackingNumber, "1Z") {
		return models.CarrierUPS, nil
	}
	return "", errors.Wrap(ErrCarrierNotFound, trackingNumber)
}

// TrackingURLGenerator produces a human-followable tracking URL for carriers
// that have no per-account carrier-code mapping.
type TrackingURLGenerator interface {
	TrackingURL(carrier models.ShippingCarrier, trackingNumber string) (string, error)
}

// TrackingURLFunc adapts a plain function to TrackingURLGenerator.
type TrackingURLFunc func(carrier models.ShippingCarrier, trackingNumber string) (string, error)

func (f TrackingURLFunc) TrackingURL(carrier models.ShippingCarrier, trackingNumber string) (string, error) {
	return f(carrier, trackingNumber)
}

// DefaultTrackingURLs покрывает только DHL; для остальных ожидается либо
// carrier-code маппинг на аккаунте, либо кастомный генератор.
type DefaultTrackingURLs struct{}

func (DefaultTrackingURLs) TrackingURL(carrier models.ShippingCarrier, trackingNumber string) (string, error) {
	switch carrier {
	case models.CarrierDHL:
		return fmt.Sprintf("https://www.dhl.com/us-en/home/tracking.html?tracking-id=%s", url.QueryEscape(trackingNumber)), nil
	default:
		return "", errors.Wrap(ErrTrackingURLUnavailable, carrier.String())
	}
}

// trackingRequest — тело PUT /api/orders/{id}/tracking. На проводе всегда
// ровно одна из двух форм: code ИЛИ name+url.
type trackingRequest struct {
	CarrierCode    string `json:"carrier_code,omitempty"`
	CarrierName    string `json:"carrier_name,omitempty"`
	CarrierURL     string `json:"carrier_url,omitempty"`
	TrackingNumber string `json:"tracking_number"`
}

// buildTrackingPayload picks the submission shape: carrier-code when the
// account maps this carrier, name+URL otherwise. Validation happens before
// transmission, so a broken account config fails loudly and locally.
func (c *Client) buildTrackingPayload(carrier models.ShippingCarrier, trackingNumber string) (trackingRequest, error) {
	if code, ok := c.carrierCodes[carrier]; ok {
		if code == "" {
			return trackingRequest{}, errors.Wrapf(ErrInvalidTrackingPayload, "empty carrier code for %s", carrier)
		}
		return trackingRequest{
			CarrierCode:    code,
			TrackingNumber: trackingNumber,
		}, nil
	}

	trackingURL, err := c.urls.TrackingURL(carrier, trackingNumber)
	if err != nil {
		return trackingRequest{}, errors.Wrapf(ErrInvalidTrackingPayload, "no carrier code and no tracking url for %s: %v", carrier, err)
	}
	if carrier.String() == "" {
		return trackingRequest{}, errors.Wrap(ErrInvalidTrackingPayload, "empty carrier name")
	}
	if !isAbsoluteURL(trackingURL) {
		return trackingRequest{}, errors.Wrapf(ErrInvalidTrackingPayload, "bad tracking url %q for %s", trackingURL, carrier)
	}
	return trackingRequest{
		CarrierName:    carrier.String(),
		CarrierURL:     trackingURL,
		TrackingNumber: trackingNumber,
	}, nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
