// Package money provides the fixed-point amount used throughout the ledger.
//
// Amounts carry exactly two fractional digits. They are parsed from decimal
// strings (never binary floats), rendered as "50.00", and stored as
// NUMERIC(14,2).
package money

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Amount carries.
const Scale = 2

var (
	// ErrPrecision is returned for inputs with more than two fractional digits.
	ErrPrecision = errors.New("amount has more than 2 fractional digits")
	// ErrSyntax is returned for inputs that are not decimal numbers.
	ErrSyntax = errors.New("amount is not a decimal number")
	// ErrRange is returned for amounts whose magnitude exceeds Max.
	ErrRange = errors.New("amount exceeds 999999999999.99")
)

// Amount is a non-floating, two-digit decimal quantity.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// Max is the largest magnitude a NUMERIC(14,2) column holds.
var Max = FromCents(99_999_999_999_999)

// Parse reads a decimal string such as "50", "50.5" or "50.00".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return fromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -Scale)}
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return Amount{}, ErrPrecision
	}
	if d.Abs().GreaterThan(Max.d) {
		return Amount{}, ErrRange
	}
	return Amount{d: d.Truncate(Scale)}, nil
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int         { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool      { return a.d.Equal(b.d) }
func (a Amount) IsPositive() bool         { return a.d.IsPositive() }
func (a Amount) IsNegative() bool         { return a.d.IsNegative() }
func (a Amount) IsZero() bool             { return a.d.IsZero() }
func (a Amount) InRange() bool            { return a.d.Abs().LessThanOrEqual(Max.d) }
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String renders exactly two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a JSON string to keep clients off floats.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number. Numbers
// are read from their literal text, never through float64.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrSyntax
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return ErrSyntax
		}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	parsed, err := fromDecimal(d)
	if err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*a = parsed
	return nil
}
