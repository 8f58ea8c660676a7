package finance

import (
	"github.com/shopspring/decimal"
)

// Amount is an exact monetary value. It is encoded as a bare JSON number
// and accepts either numbers or numeric strings on input.
type Amount struct {
	decimal.Decimal
}

func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Decimal: d}, nil
}

func MustAmount(s string) Amount {
	a, err := NewAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// Float64 is the store-portable projection of the amount.
func (a Amount) Float64() float64 {
	f, _ := a.Decimal.Float64()
	return f
}
