package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/internal/orders"
	"github.com/tablebird/tablebird-backend/pkg/config"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/logger"
	"github.com/tablebird/tablebird-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

type memoryTxnRepo struct {
	txns      []*models.PaymentTransaction
	createErr error
}

func (r *memoryTxnRepo) WithTx(_ *gorm.DB) TransactionRepository { return r }

func (r *memoryTxnRepo) Create(_ context.Context, txn *models.PaymentTransaction) error {
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.InitiatedAt.IsZero() {
		txn.InitiatedAt = time.Now().Add(time.Duration(len(r.txns)) * time.Millisecond)
	}
	r.txns = append(r.txns, txn)
	return nil
}

func (r *memoryTxnRepo) Update(_ context.Context, txn *models.PaymentTransaction) error {
	for i, existing := range r.txns {
		if existing.ID == txn.ID {
			r.txns[i] = txn
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryTxnRepo) FindByGatewayTransactionID(_ context.Context, gatewayTransactionID string) (*models.PaymentTransaction, error) {
	for _, txn := range r.txns {
		if txn.GatewayTransactionID != nil && *txn.GatewayTransactionID == gatewayTransactionID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryTxnRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, txn := range r.txns {
		if txn.OrderID == orderID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

type stubOrderRepo struct {
	order *models.Order
}

func (r *stubOrderRepo) WithTx(_ *gorm.DB) orders.OrderRepository { return r }

func (r *stubOrderRepo) Create(_ context.Context, _ *models.Order) error {
	return fmt.Errorf("not supported")
}

func (r *stubOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if r.order == nil || r.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *r.order
	return &copied, nil
}

func (r *stubOrderRepo) GetByNumber(_ context.Context, _ string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOrderRepo) ListByUser(_ context.Context, _ uuid.UUID, _, _ int) ([]models.Order, error) {
	return nil, nil
}

func (r *stubOrderRepo) ListByRestaurant(_ context.Context, _ uuid.UUID, _ *enums.OrderStatus, _, _ int) ([]models.Order, error) {
	return nil, nil
}

func (r *stubOrderRepo) UpdateColumns(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	return fmt.Errorf("not supported")
}

func (r *stubOrderRepo) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	if r.order == nil || r.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	r.order.PaymentStatus = status
	return nil
}

func (r *stubOrderRepo) AppendHistory(_ context.Context, _ *models.OrderStatusHistory) error {
	return fmt.Errorf("not supported")
}

func (r *stubOrderRepo) ListHistory(_ context.Context, _ uuid.UUID) ([]models.OrderStatusHistory, error) {
	return nil, nil
}

type stubTransitioner struct {
	calls []enums.OrderStatus
	err   error
}

func (s *stubTransitioner) TransitionStatus(_ context.Context, orderID uuid.UUID, target enums.OrderStatus, _ orders.Actor, _ *string) (*models.Order, error) {
	s.calls = append(s.calls, target)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: orderID, Status: target}, nil
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	if appErr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, appErr.Code(), err)
	}
}

type paymentsFixture struct {
	svc          Service
	txns         *memoryTxnRepo
	orderRepo    *stubOrderRepo
	transitioner *stubTransitioner
	emitter      *recordingEmitter
	orderID      uuid.UUID
}

func newPaymentsFixture(t *testing.T, autoConfirm bool) *paymentsFixture {
	t.Helper()

	orderID := uuid.New()
	orderRepo := &stubOrderRepo{
		order: &models.Order{
			ID:            orderID,
			OrderNumber:   "ORD-20260901-ABCDEF",
			TenantID:      uuid.New(),
			Status:        enums.OrderStatusAwaitingConfirmation,
			PaymentStatus: enums.PaymentStatusPending,
			Total:         price("19.80"),
			Currency:      enums.CurrencyUSD,
		},
	}
	txns := &memoryTxnRepo{}
	transitioner := &stubTransitioner{}
	emitter := &recordingEmitter{}

	svc, err := NewService(
		txns,
		orderRepo,
		transitioner,
		stubTxRunner{},
		emitter,
		config.PaymentsConfig{AutoConfirmOnPaid: autoConfirm},
		logger.New(logger.Options{ServiceName: "payments-test"}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &paymentsFixture{
		svc:          svc,
		txns:         txns,
		orderRepo:    orderRepo,
		transitioner: transitioner,
		emitter:      emitter,
		orderID:      orderID,
	}
}

func successEvent(orderID uuid.UUID, gatewayTxn string) PaymentEventInput {
	id := gatewayTxn
	return PaymentEventInput{
		OrderID:              orderID,
		GatewayName:          "stripe",
		GatewayTransactionID: &id,
		Amount:               price("19.80"),
		Currency:             enums.CurrencyUSD,
		Status:               enums.TransactionStatusSuccessful,
	}
}

func TestRecordEventDerivesPaid(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	order, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1"))
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", order.PaymentStatus)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderPaymentStatusChanged {
		t.Fatalf("expected payment status changed event, got %+v", f.emitter.events)
	}
}

func TestRecordEventReplayIsNoOp(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("first event: %v", err)
	}
	order, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID after replay, got %s", order.PaymentStatus)
	}
	if len(f.txns.txns) != 1 {
		t.Fatalf("replay must not duplicate the transaction, have %d", len(f.txns.txns))
	}
	if len(f.emitter.events) != 1 {
		t.Fatalf("replay must not emit again, have %d events", len(f.emitter.events))
	}
}

func TestRecordEventFailedThenSuccessfulIsPaidEitherOrder(t *testing.T) {
	t.Parallel()

	sequences := [][]enums.TransactionStatus{
		{enums.TransactionStatusFailed, enums.TransactionStatusSuccessful},
		{enums.TransactionStatusSuccessful, enums.TransactionStatusFailed},
	}

	for _, seq := range sequences {
		f := newPaymentsFixture(t, false)
		var last *models.Order
		for i, status := range seq {
			input := successEvent(f.orderID, fmt.Sprintf("txn-%d", i))
			input.Status = status
			order, err := f.svc.RecordEvent(context.Background(), input)
			if err != nil {
				t.Fatalf("event %d (%s): %v", i, status, err)
			}
			last = order
		}
		if last.PaymentStatus != enums.PaymentStatusPaid {
			t.Fatalf("sequence %v: expected PAID, got %s", seq, last.PaymentStatus)
		}
	}
}

func TestRecordEventStaleFailureNeverRevertsPaid(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("success event: %v", err)
	}

	// A late FAILED webhook for the same attempt arrives after success was
	// already recorded for another attempt.
	stale := successEvent(f.orderID, "txn-0")
	stale.Status = enums.TransactionStatusFailed
	order, err := f.svc.RecordEvent(context.Background(), stale)
	if err != nil {
		t.Fatalf("stale event: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("stale failure must not revert PAID, got %s", order.PaymentStatus)
	}
}

func TestRecordEventStaleFailureSameTransactionIgnored(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("success event: %v", err)
	}

	// An out-of-order FAILED delivery for the very transaction that already
	// settled must not regress the stored row.
	stale := successEvent(f.orderID, "txn-1")
	stale.Status = enums.TransactionStatusFailed
	order, err := f.svc.RecordEvent(context.Background(), stale)
	if err != nil {
		t.Fatalf("stale event: %v", err)
	}
	if len(f.txns.txns) != 1 {
		t.Fatalf("stale delivery must not create a transaction, have %d", len(f.txns.txns))
	}
	if got := f.txns.txns[0].Status; got != enums.TransactionStatusSuccessful {
		t.Fatalf("settled transaction regressed to %s", got)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("stale failure must not revert PAID, got %s", order.PaymentStatus)
	}
}

func TestRecordEventConcurrentFirstDeliveryLosesInsertRace(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	f.txns.createErr = errors.New(`duplicate key value violates unique constraint "ux_payment_txns_gateway_txn"`)

	order, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1"))
	if err != nil {
		t.Fatalf("losing the insert race must not fail the event: %v", err)
	}
	if len(f.txns.txns) != 0 {
		t.Fatalf("loser must not insert a duplicate, have %d", len(f.txns.txns))
	}
	if order == nil {
		t.Fatalf("expected the reloaded order")
	}
}

func TestRecordEventRefundMovesSettledTransaction(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("success event: %v", err)
	}

	refund := successEvent(f.orderID, "txn-1")
	refund.Status = enums.TransactionStatusRefunded
	order, err := f.svc.RecordEvent(context.Background(), refund)
	if err != nil {
		t.Fatalf("refund event: %v", err)
	}
	if got := f.txns.txns[0].Status; got != enums.TransactionStatusRefunded {
		t.Fatalf("refund must advance the settled transaction, got %s", got)
	}
	if order.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected REFUNDED, got %s", order.PaymentStatus)
	}
}

func TestRecordEventRefunds(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)
	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("success event: %v", err)
	}

	partial := successEvent(f.orderID, "rf-1")
	partial.Status = enums.TransactionStatusRefunded
	partial.Amount = price("5.00")
	order, err := f.svc.RecordEvent(context.Background(), partial)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected PARTIALLY_REFUNDED, got %s", order.PaymentStatus)
	}

	rest := successEvent(f.orderID, "rf-2")
	rest.Status = enums.TransactionStatusRefunded
	rest.Amount = price("14.80")
	order, err = f.svc.RecordEvent(context.Background(), rest)
	if err != nil {
		t.Fatalf("final refund: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("refund sum equals total, expected REFUNDED, got %s", order.PaymentStatus)
	}
}

func TestRecordEventAutoConfirmsWhenPaid(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, true)
	order, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1"))
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if len(f.transitioner.calls) != 1 || f.transitioner.calls[0] != enums.OrderStatusConfirmed {
		t.Fatalf("expected one auto-confirm call, got %v", f.transitioner.calls)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED order back, got %s", order.Status)
	}
}

func TestRecordEventAutoConfirmSwallowsStateConflict(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, true)
	f.orderRepo.order.Status = enums.OrderStatusAwaitingConfirmation
	f.transitioner.err = pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition")

	order, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1"))
	if err != nil {
		t.Fatalf("state conflict during auto-confirm must not fail reconciliation: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", order.PaymentStatus)
	}
}

func TestRecordEventSkipsAutoConfirmWhenAlreadyConfirmed(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, true)
	f.orderRepo.order.Status = enums.OrderStatusPreparing

	if _, err := f.svc.RecordEvent(context.Background(), successEvent(f.orderID, "txn-1")); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if len(f.transitioner.calls) != 0 {
		t.Fatalf("auto-confirm must only fire from AWAITING_CONFIRMATION, got %v", f.transitioner.calls)
	}
}

func TestRecordEventValidation(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, false)

	_, err := f.svc.RecordEvent(context.Background(), PaymentEventInput{})
	assertCode(t, err, pkgerrors.CodeValidation)

	input := successEvent(f.orderID, "txn-1")
	input.Status = enums.TransactionStatus("TELEPORTED")
	_, err = f.svc.RecordEvent(context.Background(), input)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.RecordEvent(context.Background(), successEvent(uuid.New(), "txn-1"))
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestDerivePaymentStatusTable(t *testing.T) {
	t.Parallel()

	total := price("20.00")
	txn := func(status enums.TransactionStatus, amount string) models.PaymentTransaction {
		return models.PaymentTransaction{Status: status, Amount: price(amount)}
	}

	cases := []struct {
		name string
		txns []models.PaymentTransaction
		want enums.PaymentStatus
	}{
		{"no transactions", nil, enums.PaymentStatusPending},
		{"pending only", []models.PaymentTransaction{txn(enums.TransactionStatusPending, "20.00")}, enums.PaymentStatusPending},
		{"requires action", []models.PaymentTransaction{txn(enums.TransactionStatusRequiresAction, "20.00")}, enums.PaymentStatusAwaitingAction},
		{"failed only", []models.PaymentTransaction{txn(enums.TransactionStatusFailed, "20.00")}, enums.PaymentStatusFailed},
		{"cancelled only", []models.PaymentTransaction{txn(enums.TransactionStatusCancelled, "20.00")}, enums.PaymentStatusFailed},
		{"success wins over failure", []models.PaymentTransaction{
			txn(enums.TransactionStatusFailed, "20.00"),
			txn(enums.TransactionStatusSuccessful, "20.00"),
		}, enums.PaymentStatusPaid},
		{"full refund", []models.PaymentTransaction{
			txn(enums.TransactionStatusSuccessful, "20.00"),
			txn(enums.TransactionStatusRefunded, "20.00"),
		}, enums.PaymentStatusRefunded},
		{"refund rewrote the captured transaction", []models.PaymentTransaction{
			txn(enums.TransactionStatusRefunded, "20.00"),
		}, enums.PaymentStatusRefunded},
		{"summed partial refunds", []models.PaymentTransaction{
			txn(enums.TransactionStatusSuccessful, "20.00"),
			txn(enums.TransactionStatusRefunded, "8.00"),
			txn(enums.TransactionStatusRefunded, "7.00"),
		}, enums.PaymentStatusPartiallyRefunded},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DerivePaymentStatus(total, tc.txns)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
