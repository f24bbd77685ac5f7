package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/udhari/creditledger/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	testCases := []struct {
		err      error
		expected int
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrTransactionNotFound, http.StatusNotFound},
		{domain.ErrAccountExists, http.StatusConflict},
		{domain.ErrRefundNotApplicable, http.StatusConflict},
		{domain.ErrDuplicateOrderRef, http.StatusConflict},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrNothingOutstanding, http.StatusBadRequest},
		{domain.ErrCreditLimitExceeded, http.StatusUnprocessableEntity},
		{domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("charge declined: %w", domain.ErrCreditLimitExceeded), http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			if got := mapDomainError(tc.err); got != tc.expected {
				t.Fatalf("mapDomainError(%v) = %d, expected %d", tc.err, got, tc.expected)
			}
		})
	}
}

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts?limit=25&bad=x", nil)

	if got := parseIntQuery(req, "limit", 20); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}

	if got := parseIntQuery(req, "offset", 0); got != 0 {
		t.Fatalf("expected default 0, got %d", got)
	}

	if got := parseIntQuery(req, "bad", 7); got != 7 {
		t.Fatalf("expected default on parse failure, got %d", got)
	}
}
