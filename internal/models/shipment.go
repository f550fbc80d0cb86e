package models

import "time"

// Статусы отгрузок в нашей очереди (не статусы маркетплейса).
const (
	ShipmentStatusPending = "PENDING"
	ShipmentStatusPushed  = "PUSHED"
	ShipmentStatusFailed  = "FAILED"
)

// Shipment — заявка "передать трек-номер маркетплейсу и подтвердить отгрузку".
// Живёт в постгресе, пока shipsync её не протолкнёт.
type Shipment struct {
	ID             uint64
	Account        string
	OrderID        string
	TrackingNumber string
	Carrier        ShippingCarrier // empty: resolve from the tracking number
	Status         string
	PushFailCount  int32
	LastError      *string
	NextAttemptAt  time.Time
	PushedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ShipmentCreateInput struct {
	Account        string
	OrderID        string
	TrackingNumber string
	Carrier        ShippingCarrier
}

// ImportedOrder is what the order importer persists: the marketplace order
// plus bookkeeping about acceptance.
type ImportedOrder struct {
	ID         uint64
	Account    string
	Order      Order
	Accepted   bool
	AcceptedAt *time.Time
	ImportedAt time.Time
	UpdatedAt  time.Time
}
