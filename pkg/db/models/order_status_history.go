package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tablebird/tablebird-backend/pkg/enums"
)

// OrderStatusHistory is the append-only audit trail: one row per transition,
// never mutated or deleted by normal operation. ChangedBy is nil for
// system-initiated transitions.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	ActorRole enums.ActorRole   `gorm:"column:actor_role;not null;default:'system'"`
	ChangedBy *uuid.UUID        `gorm:"column:changed_by;type:uuid"`
	Comment   *string           `gorm:"column:comment"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}
