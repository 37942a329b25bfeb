package closing

import "github.com/bpo/cashclosing/internal/domain/shared/valueobject"

// PaymentMethod is one of the seven sales buckets of a closing
type PaymentMethod string

const (
	PaymentMethodBoleto       PaymentMethod = "boleto"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodWireTransfer PaymentMethod = "wire_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

// AllPaymentMethods lists the methods in validation and display order
var AllPaymentMethods = []PaymentMethod{
	PaymentMethodBoleto,
	PaymentMethodCash,
	PaymentMethodDebitCard,
	PaymentMethodCreditCard,
	PaymentMethodPix,
	PaymentMethodWireTransfer,
	PaymentMethodOther,
}

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	for _, known := range AllPaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// SalesBreakdown holds the day's sales per payment method. It has exactly the
// seven buckets; the total is never stored.
type SalesBreakdown struct {
	Boleto       valueobject.Money
	Cash         valueobject.Money
	DebitCard    valueobject.Money
	CreditCard   valueobject.Money
	Pix          valueobject.Money
	WireTransfer valueobject.Money
	Other        valueobject.Money
}

// SalesEntry is one method/amount pair
type SalesEntry struct {
	Method PaymentMethod
	Amount valueobject.Money
}

// Amount returns the sales amount for a method
func (s SalesBreakdown) Amount(method PaymentMethod) valueobject.Money {
	switch method {
	case PaymentMethodBoleto:
		return s.Boleto
	case PaymentMethodCash:
		return s.Cash
	case PaymentMethodDebitCard:
		return s.DebitCard
	case PaymentMethodCreditCard:
		return s.CreditCard
	case PaymentMethodPix:
		return s.Pix
	case PaymentMethodWireTransfer:
		return s.WireTransfer
	case PaymentMethodOther:
		return s.Other
	}
	return valueobject.Zero(s.Cash.Currency())
}

// With returns a copy with one bucket replaced
func (s SalesBreakdown) With(method PaymentMethod, amount valueobject.Money) SalesBreakdown {
	switch method {
	case PaymentMethodBoleto:
		s.Boleto = amount
	case PaymentMethodCash:
		s.Cash = amount
	case PaymentMethodDebitCard:
		s.DebitCard = amount
	case PaymentMethodCreditCard:
		s.CreditCard = amount
	case PaymentMethodPix:
		s.Pix = amount
	case PaymentMethodWireTransfer:
		s.WireTransfer = amount
	case PaymentMethodOther:
		s.Other = amount
	}
	return s
}

// Entries returns the buckets in AllPaymentMethods order
func (s SalesBreakdown) Entries() []SalesEntry {
	entries := make([]SalesEntry, len(AllPaymentMethods))
	for i, m := range AllPaymentMethods {
		entries[i] = SalesEntry{Method: m, Amount: s.Amount(m)}
	}
	return entries
}

// Total sums all seven buckets. All buckets share one currency.
func (s SalesBreakdown) Total() valueobject.Money {
	total := valueobject.Zero(s.Cash.Currency())
	for _, m := range AllPaymentMethods {
		total = total.MustAdd(s.Amount(m))
	}
	return total
}

func (s SalesBreakdown) withCurrency(c valueobject.Currency) SalesBreakdown {
	out := SalesBreakdown{}
	for _, m := range AllPaymentMethods {
		out = out.With(m, valueobject.NewMoney(s.Amount(m).Cents(), c))
	}
	return out
}
