package models

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant is the outlet an order is placed against. The order core only
// reads it to bind carts and derive the owning tenant; catalog CRUD lives
// elsewhere.
type Restaurant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
