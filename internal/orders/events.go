package orders

import "github.com/google/uuid"

// OrderCreatedEvent is the outbox payload published after placement. POS
// bridge and notifier consumers key off OrderID.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	TenantID     uuid.UUID `json:"tenantId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	OrderType    string    `json:"orderType"`
	Status       string    `json:"status"`
	Total        string    `json:"total"`
	Currency     string    `json:"currency"`
}

// OrderStatusChangedEvent is the outbox payload for one transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Previous    string    `json:"previous"`
	Current     string    `json:"current"`
	ActorRole   string    `json:"actorRole"`
}
