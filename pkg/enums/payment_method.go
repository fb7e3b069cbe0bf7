package enums

import "fmt"

// PaymentMethod identifies how a payment attempt was made.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodNetBanking PaymentMethod = "NET_BANKING"
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodWallet     PaymentMethod = "WALLET"
	PaymentMethodCash       PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodOther      PaymentMethod = "OTHER"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodNetBanking,
	PaymentMethodUPI,
	PaymentMethodWallet,
	PaymentMethodCash,
	PaymentMethodOther,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
