package cart

import (
	"time"

	"github.com/google/uuid"

	cartsvc "github.com/tablebird/tablebird-backend/internal/cart"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

type CartView struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID *uuid.UUID     `json:"restaurant_id,omitempty"`
	Lines        []CartLineView `json:"lines"`
	Subtotal     string         `json:"subtotal"`
	ItemCount    int            `json:"item_count"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type CartLineView struct {
	ID             uuid.UUID                   `json:"id"`
	MenuItemID     uuid.UUID                   `json:"menu_item_id"`
	Quantity       int                         `json:"quantity"`
	UnitPrice      string                      `json:"unit_price"`
	LineTotal      string                      `json:"line_total"`
	Customizations types.CustomizationSnapshot `json:"customizations"`
	AddedAt        time.Time                   `json:"added_at"`
}

func newCartView(record *models.Cart) CartView {
	lines := make([]CartLineView, 0, len(record.Lines))
	for _, line := range record.Lines {
		lines = append(lines, CartLineView{
			ID:             line.ID,
			MenuItemID:     line.MenuItemID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPriceAtAddition.StringFixed(2),
			LineTotal:      line.LineTotal().StringFixed(2),
			Customizations: line.Customizations,
			AddedAt:        line.AddedAt,
		})
	}

	return CartView{
		ID:           record.ID,
		RestaurantID: record.RestaurantID,
		Lines:        lines,
		Subtotal:     cartsvc.Subtotal(record).StringFixed(2),
		ItemCount:    cartsvc.ItemCount(record),
		UpdatedAt:    record.UpdatedAt,
	}
}
