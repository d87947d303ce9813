package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind identifies the variant held by a Value.
type ValueKind string

const (
	KindNull    ValueKind = "null"
	KindString  ValueKind = "string"
	KindInt     ValueKind = "int"
	KindDecimal ValueKind = "decimal"
	KindBool    ValueKind = "bool"
	KindDate    ValueKind = "date"
)

func (k ValueKind) String() string { return string(k) }

func (k ValueKind) IsValid() bool {
	switch k {
	case KindNull, KindString, KindInt, KindDecimal, KindBool, KindDate:
		return true
	}
	return false
}

// Value is a sealed tagged variant for persona field values.
// Only Null, String, Int, Decimal, Bool and Date implement it.
type Value interface {
	Kind() ValueKind
	Equal(other Value) bool
	String() string
	value()
}

// Null is the absent value of an optional field.
type Null struct{}

func (Null) value()          {}
func (Null) Kind() ValueKind { return KindNull }
func (Null) String() string  { return "null" }

func (Null) Equal(other Value) bool {
	_, ok := other.(Null)
	return ok
}

// String is a text value.
type String string

func (String) value()           {}
func (String) Kind() ValueKind  { return KindString }
func (s String) String() string { return string(s) }

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == s
}

// Int is an integral number.
type Int int64

func (Int) value()           {}
func (Int) Kind() ValueKind  { return KindInt }
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

func (i Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && o == i
}

// Decimal is an exact decimal number, used for monetary fields such as balance.
type Decimal struct {
	decimal.Decimal
}

// NewDecimal parses s into a Decimal value.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{Decimal: d}, nil
}

// MustDecimal is NewDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (Decimal) value()          {}
func (Decimal) Kind() ValueKind { return KindDecimal }

// String renders the decimal without trailing exponent notation.
func (d Decimal) String() string { return d.Decimal.String() }

// Equal compares numerically, so 1.5 equals 1.50.
func (d Decimal) Equal(other Value) bool {
	o, ok := other.(Decimal)
	return ok && o.Decimal.Equal(d.Decimal)
}

// Bool is a flag value.
type Bool bool

func (Bool) value()          {}
func (Bool) Kind() ValueKind { return KindBool }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == b
}

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (Date) value()          {}
func (Date) Kind() ValueKind { return KindDate }

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

func (d Date) Equal(other Value) bool {
	o, ok := other.(Date)
	return ok && o == d
}

// ValuesEqual reports whether a and b hold the same variant and value.
// A nil Value is treated as Null.
func ValuesEqual(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a.Equal(b)
}
