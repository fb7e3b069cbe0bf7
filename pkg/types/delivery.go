package types

import "strings"

// DeliveryDetails carries the address and geocoordinates for delivery orders.
// Persisted as jsonb on the order.
type DeliveryDetails struct {
	Line1        string   `json:"line1"`
	Line2        *string  `json:"line2,omitempty"`
	City         string   `json:"city"`
	State        string   `json:"state,omitempty"`
	PostalCode   string   `json:"postal_code"`
	Country      string   `json:"country,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Instructions *string  `json:"instructions,omitempty"`
}

// Complete reports whether the address carries the fields required to
// dispatch a delivery order.
func (d DeliveryDetails) Complete() bool {
	return strings.TrimSpace(d.Line1) != "" &&
		strings.TrimSpace(d.City) != "" &&
		strings.TrimSpace(d.PostalCode) != ""
}
