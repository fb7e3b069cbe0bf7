package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/tablebird/tablebird-backend/internal/cart"
)

type AddItemRequest struct {
	MenuItemID uuid.UUID   `json:"menu_item_id" validate:"required"`
	Quantity   int         `json:"quantity" validate:"required,min=1"`
	OptionIDs  []uuid.UUID `json:"option_ids" validate:"omitempty,dive,required"`
}

type UpdateLineRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

func toAddItemInput(payload AddItemRequest) cartsvc.AddItemInput {
	return cartsvc.AddItemInput{
		MenuItemID: payload.MenuItemID,
		Quantity:   payload.Quantity,
		OptionIDs:  payload.OptionIDs,
	}
}
