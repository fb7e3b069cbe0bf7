package payments

import (
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
)

// DerivePaymentStatus recomputes the order-level payment status from the
// complete transaction history. It is a pure function: replaying the same
// history always yields the same answer, which is what makes duplicate and
// out-of-order gateway deliveries harmless.
func DerivePaymentStatus(orderTotal decimal.Decimal, txns []models.PaymentTransaction) enums.PaymentStatus {
	var (
		hasSuccess     bool
		refundSum      = decimal.Zero
		lastTerminal   *enums.TransactionStatus
		requiresAction bool
	)

	for i := range txns {
		txn := txns[i]
		switch txn.Status {
		case enums.TransactionStatusSuccessful:
			hasSuccess = true
		case enums.TransactionStatusRefunded, enums.TransactionStatusPartiallyRefunded:
			// A refund implies the charge was captured first, even when the
			// gateway rewrote the original transaction's status in place.
			hasSuccess = true
			refundSum = refundSum.Add(txn.Amount)
		case enums.TransactionStatusFailed, enums.TransactionStatusCancelled:
			status := txn.Status
			lastTerminal = &status
		case enums.TransactionStatusRequiresAction:
			requiresAction = true
		}
	}

	if hasSuccess {
		if refundSum.IsPositive() {
			if refundSum.GreaterThanOrEqual(orderTotal) {
				return enums.PaymentStatusRefunded
			}
			return enums.PaymentStatusPartiallyRefunded
		}
		return enums.PaymentStatusPaid
	}

	if lastTerminal != nil {
		return enums.PaymentStatusFailed
	}
	if requiresAction {
		return enums.PaymentStatusAwaitingAction
	}
	return enums.PaymentStatusPending
}
