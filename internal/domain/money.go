package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const microsPerUnit = 1_000_000

var microsFactor = decimal.NewFromInt(microsPerUnit)

// MaxAmount is the largest single amount accepted from a caller, in currency units. It keeps
// amount plus commission and any resulting balance well inside int64 micros.
var MaxAmount = decimal.NewFromInt(1_000_000_000_000)

var (
	maxMicros = decimal.NewFromInt(math.MaxInt64)
	minMicros = decimal.NewFromInt(math.MinInt64)
)

// minorUnits is the number of decimal places each supported currency settles in.
var minorUnits = map[string]int32{
	"LYD": 3,
	"TND": 3,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"EGP": 2,
	"TRY": 2,
	"AED": 2,
	"SAR": 2,
}

// MinorUnits returns the settlement precision of currency.
func MinorUnits(currency string) (int32, error) {
	places, ok := minorUnits[currency]
	if !ok {
		return 0, Validationf("unsupported currency %q", currency)
	}
	return places, nil
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if _, err := MinorUnits(c); err != nil {
		return "", err
	}
	return c, nil
}

// RoundToCurrency rounds d half-up to the minor units of currency.
func RoundToCurrency(d decimal.Decimal, currency string) (decimal.Decimal, error) {
	places, err := MinorUnits(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(places), nil
}

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64  // micros
	Currency string // ISO 4217
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ParseAmount validates a caller supplied amount: strictly positive and no finer than the
// currency's minor units.
func ParseAmount(d decimal.Decimal, currency string) (Money, error) {
	places, err := MinorUnits(currency)
	if err != nil {
		return Money{}, err
	}
	if !d.IsPositive() {
		return Money{}, Validationf("amount must be greater than zero")
	}
	if !d.Equal(d.Round(places)) {
		return Money{}, Validationf("amount has more than %d decimal places for %s", places, currency)
	}
	if d.GreaterThan(MaxAmount) {
		return Money{}, Validationf("amount exceeds the maximum of %s %s", MaxAmount.String(), currency)
	}
	return MoneyFromDecimal(d, currency)
}

// MoneyFromDecimal converts d to micros, failing with a ValidationError when the result does not
// fit in int64.
func MoneyFromDecimal(d decimal.Decimal, currency string) (Money, error) {
	micros := d.Mul(microsFactor).Truncate(0)
	if micros.GreaterThan(maxMicros) || micros.LessThan(minMicros) {
		return Money{}, Validationf("amount %s %s is out of range", d.String(), currency)
	}
	return Money{Amount: micros.IntPart(), Currency: currency}, nil
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(microsFactor)
}

// FromDecimal converts a decimal.Decimal to int64 micros. The caller guarantees the range; use
// MoneyFromDecimal for anything derived from input.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(microsFactor).IntPart()
}

// Add returns m+o in m's currency. Callers only add amounts of one currency.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

// CheckedAdd is Add that fails instead of wrapping around.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum, ok := AddMicros(m.Amount, o.Amount)
	if !ok {
		return Money{}, Validationf("amount is out of range for %s", m.Currency)
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// AddMicros adds a and b, reporting false on int64 overflow.
func AddMicros(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// Fixed renders the amount at the currency's settlement precision, e.g. "1020.000" for LYD.
func (m Money) Fixed() string {
	places, err := MinorUnits(m.Currency)
	if err != nil {
		places = 2
	}
	return m.ToDecimal().StringFixed(places)
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Fixed(), m.Currency)
}
