package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
)

// Repository exposes persistence operations for orders, their line
// snapshots, and the status audit trail.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order with its lines and history in one statement tree.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Lines {
		if order.Lines[i].ID == uuid.Nil {
			order.Lines[i].ID = uuid.New()
		}
	}
	for i := range order.History {
		if order.History[i].ID == uuid.Nil {
			order.History[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID loads an order with lines and history.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("History", historyOrdering).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByNumber loads an order by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("History", historyOrdering).
		Where("order_number = ?", number).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// ListByRestaurant returns a restaurant's orders, optionally filtered by status.
func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines").
		Where("restaurant_id = ?", restaurantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// UpdateColumns applies a column update map to the order row.
func (r *Repository) UpdateColumns(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// UpdatePaymentStatus sets the derived payment status.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status).Error
}

// AppendHistory inserts one audit row.
func (r *Repository) AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// ListHistory returns the order's audit trail, oldest first.
func (r *Repository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func historyOrdering(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
