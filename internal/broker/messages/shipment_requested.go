package messages

// ShipmentRequested приходит со стороны склада: заказ собран, есть
// трек-номер, пора сообщить маркетплейсу. Carrier опционален — пустое
// значение значит "определить по трек-номеру".
type ShipmentRequested struct {
	Account        string `json:"account"`
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
}
