package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
)

// Repository persists payment transactions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) WithTx(tx *gorm.DB) TransactionRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *Repository) Update(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

// FindByGatewayTransactionID looks up the transaction a gateway event refers
// to. The unique index on gateway_transaction_id makes this the dedupe key.
func (r *Repository) FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", gatewayTransactionID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByOrder returns the order's full transaction history, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("initiated_at ASC, id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
