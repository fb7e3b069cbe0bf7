package orders

import (
	"time"

	ordersvc "github.com/tablebird/tablebird-backend/internal/orders"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

type ContactRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

type DeliveryRequest struct {
	Line1        string   `json:"line1" validate:"required"`
	Line2        *string  `json:"line2"`
	City         string   `json:"city" validate:"required"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postal_code" validate:"required"`
	Country      string   `json:"country"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	Instructions *string  `json:"instructions"`
}

type PlaceOrderRequest struct {
	OrderType           string           `json:"order_type" validate:"required,oneof=DINE_IN TAKEAWAY DELIVERY"`
	Contact             ContactRequest   `json:"contact" validate:"required"`
	TableNumber         *string          `json:"table_number"`
	Delivery            *DeliveryRequest `json:"delivery"`
	Currency            string           `json:"currency" validate:"omitempty,oneof=USD EUR GBP INR"`
	SpecialInstructions *string          `json:"special_instructions"`
	ScheduledFor        *time.Time       `json:"scheduled_for"`
}

type TransitionRequest struct {
	Status  string  `json:"status" validate:"required"`
	Comment *string `json:"comment"`
}

type CancelRequest struct {
	Reason *string `json:"reason"`
}

type OperationalFieldsRequest struct {
	InternalNotes           *string    `json:"internal_notes"`
	POSOrderID              *string    `json:"pos_order_id"`
	KDSToken                *string    `json:"kds_token"`
	PrepTimeEstimateMinutes *int       `json:"prep_time_estimate_minutes" validate:"omitempty,min=0"`
	ScheduledFor            *time.Time `json:"scheduled_for"`
	TableNumber             *string    `json:"table_number"`
}

func toPlaceOrderInput(payload PlaceOrderRequest) ordersvc.PlaceOrderInput {
	input := ordersvc.PlaceOrderInput{
		OrderType: enums.OrderType(payload.OrderType),
		Contact: types.CustomerContact{
			Name:  payload.Contact.Name,
			Phone: payload.Contact.Phone,
			Email: payload.Contact.Email,
		},
		TableNumber:         payload.TableNumber,
		Currency:            enums.Currency(payload.Currency),
		SpecialInstructions: payload.SpecialInstructions,
		ScheduledFor:        payload.ScheduledFor,
	}
	if payload.Delivery != nil {
		input.Delivery = &types.DeliveryDetails{
			Line1:        payload.Delivery.Line1,
			Line2:        payload.Delivery.Line2,
			City:         payload.Delivery.City,
			State:        payload.Delivery.State,
			PostalCode:   payload.Delivery.PostalCode,
			Country:      payload.Delivery.Country,
			Lat:          payload.Delivery.Lat,
			Lng:          payload.Delivery.Lng,
			Instructions: payload.Delivery.Instructions,
		}
	}
	return input
}

func toOperationalFieldsInput(payload OperationalFieldsRequest) ordersvc.OperationalFieldsInput {
	return ordersvc.OperationalFieldsInput{
		InternalNotes:           payload.InternalNotes,
		POSOrderID:              payload.POSOrderID,
		KDSToken:                payload.KDSToken,
		PrepTimeEstimateMinutes: payload.PrepTimeEstimateMinutes,
		ScheduledFor:            payload.ScheduledFor,
		TableNumber:             payload.TableNumber,
	}
}
