package enums

import "fmt"

// TransactionStatus is the gateway-reported state of a single payment attempt.
type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "PENDING"
	TransactionStatusProcessing        TransactionStatus = "PROCESSING"
	TransactionStatusRequiresAction    TransactionStatus = "REQUIRES_ACTION"
	TransactionStatusSuccessful        TransactionStatus = "SUCCESSFUL"
	TransactionStatusFailed            TransactionStatus = "FAILED"
	TransactionStatusCancelled         TransactionStatus = "CANCELLED"
	TransactionStatusRefundInitiated   TransactionStatus = "REFUND_INITIATED"
	TransactionStatusRefunded          TransactionStatus = "REFUNDED"
	TransactionStatusPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusRequiresAction,
	TransactionStatusSuccessful,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusRefundInitiated,
	TransactionStatusRefunded,
	TransactionStatusPartiallyRefunded,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the gateway will not move the attempt further.
func (t TransactionStatus) IsTerminal() bool {
	switch t {
	case TransactionStatusSuccessful,
		TransactionStatusFailed,
		TransactionStatusCancelled,
		TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// IsRefund reports whether the status represents completed refund money movement.
func (t TransactionStatus) IsRefund() bool {
	switch t {
	case TransactionStatusRefunded, TransactionStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
