package models

import "github.com/shopspring/decimal"

// Quantize renders d with exactly the given number of fractional digits using
// banker's rounding (round half to even). Every component that emits decimal
// strings must go through this one routine: repeated runs over the same input
// have to produce byte-identical output for the idempotent database merge to
// hold, so the rounding rule is fixed here and nowhere else.
func Quantize(d decimal.Decimal, places int32) string {
	return d.StringFixedBank(places)
}

// QuantizeString parses a decimal string and re-renders it at the given
// precision. Returns the parse error unchanged so callers can surface the
// offending value.
func QuantizeString(s string, places int32) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", err
	}
	return Quantize(d, places), nil
}
