package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of fractional digits every supported currency uses.
const minorDigits = 2

var hundred = decimal.NewFromInt(100)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrOutOfRange      = errors.New("amount out of range")
)

// supported lists the ISO-4217 codes accepted by the provider with two minor digits.
var supported = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {}, "NZD": {},
	"SGD": {}, "HKD": {}, "CHF": {}, "SEK": {}, "NOK": {}, "DKK": {},
	"PLN": {}, "CZK": {}, "MXN": {}, "BRL": {}, "INR": {}, "IDR": {},
	"MYR": {}, "PHP": {}, "THB": {}, "ZAR": {}, "AED": {},
}

// Money is an exact decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NormalizeCurrency upper-cases and validates a currency code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if _, ok := supported[c]; !ok {
		return "", fmt.Errorf("%w: %q is not supported", ErrInvalidCurrency, code)
	}
	return c, nil
}

// New builds a Money value, validating the currency.
func New(amount decimal.Decimal, currency string) (Money, error) {
	c, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: c}, nil
}

// Parse reads a decimal string such as "49.99".
func Parse(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, currency)
}

// MustParse is Parse for constants and tests.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinorUnits converts an integer amount of cents back into Money. The
// currency is only upper-cased: values echoed by the provider are authoritative.
func FromMinorUnits(units int64, currency string) Money {
	return Money{
		Amount:   decimal.New(units, -minorDigits),
		Currency: strings.ToUpper(currency),
	}
}

// MinorUnits returns round-half-up(amount * 100).
func (m Money) MinorUnits() (int64, error) {
	scaled := m.Amount.Mul(hundred).Round(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, m.Amount.String())
	}
	return scaled.IntPart(), nil
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Equal compares amounts numerically, so 20 equals 20.00.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// GreaterThan reports whether m exceeds o. Currencies must match.
func (m Money) GreaterThan(o Money) bool {
	return m.Amount.GreaterThan(o.Amount)
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Amount.StringFixed(minorDigits) + " " + m.Currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.Amount.StringFixed(minorDigits),
		Currency: m.Currency,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
