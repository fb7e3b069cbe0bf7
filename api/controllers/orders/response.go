package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

type OrderView struct {
	ID           uuid.UUID `json:"id"`
	OrderNumber  string    `json:"order_number"`
	RestaurantID uuid.UUID `json:"restaurant_id"`

	Status        string `json:"status"`
	OrderType     string `json:"order_type"`
	PaymentStatus string `json:"payment_status"`

	Contact     types.CustomerContact  `json:"contact"`
	TableNumber *string                `json:"table_number,omitempty"`
	Delivery    *types.DeliveryDetails `json:"delivery,omitempty"`

	Subtotal    string `json:"subtotal"`
	Taxes       string `json:"taxes"`
	DeliveryFee string `json:"delivery_fee"`
	ServiceFee  string `json:"service_fee"`
	Discount    string `json:"discount"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`

	SpecialInstructions *string    `json:"special_instructions,omitempty"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty"`

	Lines []OrderLineView `json:"lines,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type OrderLineView struct {
	ID             uuid.UUID                   `json:"id"`
	MenuItemID     *uuid.UUID                  `json:"menu_item_id,omitempty"`
	Name           string                      `json:"name"`
	Quantity       int                         `json:"quantity"`
	UnitPrice      string                      `json:"unit_price"`
	LineTotal      string                      `json:"line_total"`
	Customizations types.CustomizationSnapshot `json:"customizations"`
}

type HistoryView struct {
	Status    string     `json:"status"`
	ActorRole string     `json:"actor_role"`
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
	Comment   *string    `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newOrderView(record *models.Order) OrderView {
	lines := make([]OrderLineView, 0, len(record.Lines))
	for _, line := range record.Lines {
		lines = append(lines, OrderLineView{
			ID:             line.ID,
			MenuItemID:     line.MenuItemID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice.StringFixed(2),
			LineTotal:      line.LineTotal().StringFixed(2),
			Customizations: line.Customizations,
		})
	}

	return OrderView{
		ID:           record.ID,
		OrderNumber:  record.OrderNumber,
		RestaurantID: record.RestaurantID,

		Status:        string(record.Status),
		OrderType:     string(record.OrderType),
		PaymentStatus: string(record.PaymentStatus),

		Contact:     record.Contact,
		TableNumber: record.TableNumber,
		Delivery:    record.Delivery,

		Subtotal:    record.Subtotal.StringFixed(2),
		Taxes:       record.Taxes.StringFixed(2),
		DeliveryFee: record.DeliveryFee.StringFixed(2),
		ServiceFee:  record.ServiceFee.StringFixed(2),
		Discount:    record.Discount.StringFixed(2),
		Total:       record.Total.StringFixed(2),
		Currency:    string(record.Currency),

		SpecialInstructions: record.SpecialInstructions,
		ScheduledFor:        record.ScheduledFor,

		Lines: lines,

		CreatedAt:   record.CreatedAt,
		ConfirmedAt: record.ConfirmedAt,
		CompletedAt: record.CompletedAt,
		CancelledAt: record.CancelledAt,
	}
}

func newOrderViews(records []models.Order) []OrderView {
	out := make([]OrderView, 0, len(records))
	for i := range records {
		out = append(out, newOrderView(&records[i]))
	}
	return out
}

func newHistoryViews(rows []models.OrderStatusHistory) []HistoryView {
	out := make([]HistoryView, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryView{
			Status:    string(row.Status),
			ActorRole: string(row.ActorRole),
			ChangedBy: row.ChangedBy,
			Comment:   row.Comment,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}
