package core

import (
	"errors"
	"strings"
)

const (
	StatusBought Status = "bought"
	StatusIdea   Status = "idea"
)

type (
	// Status marks a gift as purchased or merely planned.
	Status string

	// Gift is one recipient/item/price record scoped to a calendar year.
	// Price is whole crowns; nil means "not yet priced" and is only legal
	// while the gift is still an idea.
	Gift struct {
		ID          string `json:"id"`
		Year        int    `json:"year"`
		Name        string `json:"name"`
		Description string `json:"gift"`
		Price       *int64 `json:"price"`
		Status      Status `json:"status"`
	}
)

var (
	ErrInvalidPrice     = errors.New("invalid price")
	ErrMissingPrice     = errors.New("bought gift requires a price")
	ErrEmptyDescription = errors.New("description too short")
	ErrEmptyName        = errors.New("empty name")
	ErrUnknownName      = errors.New("name not registered for year")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidYear      = errors.New("invalid year")
	ErrYearLocked       = errors.New("year is not editable")
	ErrDuplicateName    = errors.New("name already registered")
	ErrBoughtLocked     = errors.New("bought gift cannot revert to idea")
)

func (s Status) Valid() bool {
	return s == StatusBought || s == StatusIdea
}

// ValidPrice reports whether p holds a usable positive price.
func ValidPrice(p *int64) bool {
	return p != nil && *p > 0
}

// PriceOf wraps a literal crown amount as an optional price.
func PriceOf(v int64) *int64 {
	return &v
}

func (g Gift) Validate() error {
	if g.Year <= 0 {
		return ErrInvalidYear
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(strings.TrimSpace(g.Description)) <= 1 {
		return ErrEmptyDescription
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	if g.Status == StatusBought && !ValidPrice(g.Price) {
		return ErrMissingPrice
	}
	// An idea may be unpriced, but a present price must be positive.
	if g.Price != nil && *g.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
