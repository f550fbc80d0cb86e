package models

// ShippingCarrier — идентичность перевозчика, не код конкретного маркетплейса.
// Маппинг в carrier_code делается per-account в marketplace.AccountConfig.
type ShippingCarrier string

const (
	CarrierUPS    ShippingCarrier = "ups"
	CarrierUSPS   ShippingCarrier = "usps"
	CarrierFedEx  ShippingCarrier = "fedex"
	CarrierDHL    ShippingCarrier = "dhl"
	CarrierCustom ShippingCarrier = "custom"
)

// CarrierFromString normalizes a raw carrier value; anything unknown maps to
// CarrierCustom rather than failing, the wire value is kept as the name.
func CarrierFromString(v string) ShippingCarrier {
	switch v {
	case "ups":
		return CarrierUPS
	case "usps":
		return CarrierUSPS
	case "fedex":
		return CarrierFedEx
	case "dhl":
		return CarrierDHL
	default:
		return CarrierCustom
	}
}

func (c ShippingCarrier) String() string {
	return string(c)
}
