package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// Ledger errors
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrCreditLimitExceeded = errors.New("insufficient available credit")
	ErrNothingOutstanding  = errors.New("no outstanding balance to pay")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateOrderRef   = errors.New("order reference already recorded")
	ErrRefundNotApplicable = errors.New("no refundable charge for order")

	// Infrastructure errors
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
)
