package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxCustomerNameLength = 255
	MaxDescriptionLength  = 512
	MaxChargeAmount       = "1000000" // per-transaction ceiling
)

// ValidateAmount validates a charge or payment amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	max, _ := decimal.NewFromString(MaxChargeAmount)
	if amount.GreaterThan(max) {
		return fmt.Errorf("%w: exceeds %s", ErrInvalidAmount, MaxChargeAmount)
	}

	return nil
}

// ValidateCreditLimit validates a credit limit. Zero is allowed: it freezes
// further charges without touching the outstanding balance.
func ValidateCreditLimit(limit decimal.Decimal) error {
	if limit.IsNegative() {
		return fmt.Errorf("%w: credit limit cannot be negative", ErrInvalidAmount)
	}
	return nil
}

// ValidateCustomerName validates the customer name attached to an account.
func ValidateCustomerName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("customer name cannot be empty")
	}

	if len(name) > MaxCustomerNameLength {
		return fmt.Errorf("customer name exceeds %d characters", MaxCustomerNameLength)
	}

	return nil
}

// ValidateDescription bounds a transaction description.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidatePagination clamps pagination parameters to sane bounds.
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}

	if limit > 100 {
		limit = 100
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
