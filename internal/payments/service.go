package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/internal/orders"
	"github.com/tablebird/tablebird-backend/pkg/config"
	pkgdb "github.com/tablebird/tablebird-backend/pkg/db"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/logger"
	"github.com/tablebird/tablebird-backend/pkg/outbox"
)

// TransactionRepository is the persistence surface for payment transactions.
type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	Update(ctx context.Context, txn *models.PaymentTransaction) error
	FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*models.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// statusTransitioner is the slice of the order service the auto-confirm
// hook needs.
type statusTransitioner interface {
	TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor orders.Actor, comment *string) (*models.Order, error)
}

// PaymentEventInput is one gateway-reported transaction outcome.
type PaymentEventInput struct {
	OrderID                uuid.UUID
	GatewayName            string
	GatewayTransactionID   *string
	GatewayPaymentIntentID *string
	Amount                 decimal.Decimal
	Currency               enums.Currency
	PaymentMethod          *enums.PaymentMethod
	Status                 enums.TransactionStatus
	GatewayResponse        json.RawMessage
	ErrorMessage           *string
	ErrorCode              *string
}

// PaymentStatusChangedEvent is the outbox payload for a derived payment
// status change.
type PaymentStatusChangedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Previous    string    `json:"previous"`
	Current     string    `json:"current"`
	Gateway     string    `json:"gateway"`
}

// Service reconciles gateway events into the order's payment status.
type Service interface {
	RecordEvent(ctx context.Context, input PaymentEventInput) (*models.Order, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
}

type service struct {
	txns    TransactionRepository
	orders  orders.OrderRepository
	machine statusTransitioner
	tx      txRunner
	events  eventEmitter
	cfg     config.PaymentsConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the reconciliation engine. machine may be nil when the
// auto-confirm hook is disabled for the deployment.
func NewService(
	txns TransactionRepository,
	orderRepo orders.OrderRepository,
	machine statusTransitioner,
	tx txRunner,
	events eventEmitter,
	cfg config.PaymentsConfig,
	logg *logger.Logger,
) (Service, error) {
	if txns == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		txns:    txns,
		orders:  orderRepo,
		machine: machine,
		tx:      tx,
		events:  events,
		cfg:     cfg,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// RecordEvent persists the transaction outcome and recomputes the order's
// payment status from the full history. Duplicate or stale gateway events
// degrade to a no-op recomputation; they never error and never move the
// status backwards.
func (s *service) RecordEvent(ctx context.Context, input PaymentEventInput) (*models.Order, error) {
	if err := s.validateEvent(input); err != nil {
		return nil, err
	}

	var (
		updated     *models.Order
		paidNow     bool
		orderStatus enums.OrderStatus
	)

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txnRepo := s.txns.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		order, err := orderRepo.GetByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if err := s.upsertTransaction(ctx, txnRepo, order, input); err != nil {
			return err
		}

		history, err := txnRepo.ListByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment transactions")
		}

		previous := order.PaymentStatus
		derived := DerivePaymentStatus(order.Total, history)

		if derived != previous {
			if err := orderRepo.UpdatePaymentStatus(ctx, order.ID, derived); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventOrderPaymentStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
				Data: PaymentStatusChangedEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					Previous:    string(previous),
					Current:     string(derived),
					Gateway:     input.GatewayName,
				},
				OccurredAt: s.now(),
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment status changed event")
			}

			paidNow = derived == enums.PaymentStatusPaid
		}

		order.PaymentStatus = derived
		updated = order
		orderStatus = order.Status
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Payment-first auto-confirm runs after the reconciliation commit so a
	// state-machine refusal cannot roll back the recorded payment.
	if paidNow && s.cfg.AutoConfirmOnPaid && s.machine != nil &&
		orderStatus == enums.OrderStatusAwaitingConfirmation {
		confirmed, err := s.machine.TransitionStatus(ctx, updated.ID, enums.OrderStatusConfirmed, orders.Actor{Role: enums.ActorRoleSystem}, nil)
		if err != nil {
			if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeStateConflict {
				logCtx := s.logg.WithField(ctx, "order_id", updated.ID.String())
				s.logg.Info(logCtx, "auto-confirm skipped, order already moved on")
			} else {
				return nil, err
			}
		} else {
			updated = confirmed
		}
	}

	return updated, nil
}

func (s *service) upsertTransaction(ctx context.Context, repo TransactionRepository, order *models.Order, input PaymentEventInput) error {
	var existing *models.PaymentTransaction
	if input.GatewayTransactionID != nil && *input.GatewayTransactionID != "" {
		found, err := repo.FindByGatewayTransactionID(ctx, *input.GatewayTransactionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment transaction")
		}
		existing = found
	}

	now := s.now()
	if existing != nil {
		if staleStatusDelivery(existing.Status, input.Status) {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"gateway_transaction_id": *input.GatewayTransactionID,
				"stored_status":          existing.Status,
				"delivered_status":       input.Status,
			})
			s.logg.Info(logCtx, "ignoring stale payment event for settled transaction")
			return nil
		}
		existing.Status = input.Status
		if input.GatewayResponse != nil {
			existing.GatewayResponse = input.GatewayResponse
		}
		if input.ErrorMessage != nil {
			existing.ErrorMessage = input.ErrorMessage
		}
		if input.ErrorCode != nil {
			existing.ErrorCode = input.ErrorCode
		}
		if input.Status.IsTerminal() && existing.CompletedOrFailedAt == nil {
			existing.CompletedOrFailedAt = &now
		}
		if err := repo.Update(ctx, existing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment transaction")
		}
		return nil
	}

	currency := input.Currency
	if currency == "" {
		currency = order.Currency
	}
	txn := &models.PaymentTransaction{
		OrderID:  order.ID,
		UserID:   order.UserID,
		TenantID: order.TenantID,

		GatewayName:            input.GatewayName,
		GatewayTransactionID:   input.GatewayTransactionID,
		GatewayPaymentIntentID: input.GatewayPaymentIntentID,

		Amount:        input.Amount,
		Currency:      currency,
		PaymentMethod: input.PaymentMethod,
		Status:        input.Status,

		GatewayResponse: input.GatewayResponse,
		ErrorMessage:    input.ErrorMessage,
		ErrorCode:       input.ErrorCode,
	}
	if input.Status.IsTerminal() {
		txn.CompletedOrFailedAt = &now
	}
	if err := repo.Create(ctx, txn); err != nil {
		if pkgdb.IsUniqueViolation(err, "ux_payment_txns_gateway_txn") {
			// A concurrent first delivery won the insert; this replica's copy
			// carries nothing the stored row lacks.
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment transaction")
	}
	return nil
}

// staleStatusDelivery reports whether a delivery for an already settled
// transaction must be ignored. Settled transactions only move through refund
// money movement; anything else arriving late is a replay out of order.
func staleStatusDelivery(current, incoming enums.TransactionStatus) bool {
	if !current.IsTerminal() || incoming == current {
		return false
	}
	if current == enums.TransactionStatusSuccessful &&
		(incoming == enums.TransactionStatusRefundInitiated || incoming.IsRefund()) {
		return false
	}
	return true
}

func (s *service) validateEvent(input PaymentEventInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.GatewayName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway name is required")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction status")
	}
	if input.Amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if input.Currency != "" && !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown currency")
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	return nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	txns, err := s.txns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment transactions")
	}
	return txns, nil
}
