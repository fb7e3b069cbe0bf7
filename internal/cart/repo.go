package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindByIdentity loads the live cart for a user or session identity.
func (r *Repository) FindByIdentity(ctx context.Context, identity Identity) (*models.Cart, error) {
	query := r.db.WithContext(ctx).Preload("Lines", lineOrdering)
	switch {
	case identity.UserID != nil:
		query = query.Where("user_id = ?", *identity.UserID)
	case identity.SessionKey != nil:
		query = query.Where("session_key = ?", *identity.SessionKey)
	default:
		return nil, errors.New("cart identity required")
	}
	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetByID loads a cart with its lines.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines", lineOrdering).
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// SetRestaurant updates the cart's restaurant binding.
func (r *Repository) SetRestaurant(ctx context.Context, cartID uuid.UUID, restaurantID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("restaurant_id", restaurantID).Error
}

// FindLine returns the line matching the dedupe key, if any.
func (r *Repository) FindLine(ctx context.Context, cartID, menuItemID uuid.UUID, customizationKey string) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND menu_item_id = ? AND customization_key = ?", cartID, menuItemID, customizationKey).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// GetLine returns a line by id scoped to the cart.
func (r *Repository) GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CreateLine inserts a new cart line.
func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateLineQuantity replaces the quantity on an existing line.
func (r *Repository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// DeleteLine removes one line.
func (r *Repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.CartLine{}).Error
}

// DeleteLinesByCart removes every line belonging to the cart.
func (r *Repository) DeleteLinesByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error
}

// CountLines returns how many lines the cart currently holds.
func (r *Repository) CountLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ?", cartID).
		Count(&count).Error
	return count, err
}

func lineOrdering(db *gorm.DB) *gorm.DB {
	return db.Order("added_at ASC")
}
