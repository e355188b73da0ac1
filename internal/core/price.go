// Package core holds the gift domain model and the pure aggregation
// functions computed over it.
//
// This file parses user-supplied price input. Prices are whole crowns;
// fractional input is rounded half-up.
package core

import (
	"strconv"
	"strings"
)

// ParsePrice converts raw form/JSON input to an optional price.
//
// Blank input means "not yet priced" and yields nil without error. Anything
// non-blank must parse to a finite number strictly greater than zero; a
// zero, negative or non-numeric value is rejected outright rather than
// silently treated as unpriced.
func ParsePrice(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, ErrInvalidPrice
	}
	return PriceFromNumber(v)
}

// PriceFromNumber validates a numeric price coming from a JSON body.
func PriceFromNumber(v float64) (*int64, error) {
	if v != v || v > float64(1<<62) || v <= 0 {
		return nil, ErrInvalidPrice
	}
	p := int64(v + 0.5)
	if p <= 0 {
		return nil, ErrInvalidPrice
	}
	return &p, nil
}
