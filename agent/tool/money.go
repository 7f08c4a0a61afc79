package tool

import (
	"github.com/shopspring/decimal"
)

// Money is a currency amount that marshals as a JSON number with two
// decimals.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// Dollars formats the amount as "$1599.99".
func (m Money) Dollars() string {
	return "$" + m.StringFixed(2)
}
