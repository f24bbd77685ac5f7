package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/udhari/creditledger/internal/adapter/http/dto"
	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetSummary(ctx context.Context, accountID string) (*usecase.AccountSummary, error)
}

// StatementService defines the read views needed by AccountHandler.
type StatementService interface {
	StatementFor(ctx context.Context, accountID string, limit, offset int) (*usecase.Statement, error)
}

// AccountHandler handles customer-facing account requests.
type AccountHandler struct {
	ledger     AccountService
	statements StatementService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger AccountService, statements StatementService) *AccountHandler {
	return &AccountHandler{ledger: ledger, statements: statements}
}

// Open opens a store-credit account for a newly registered customer.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.ledger.OpenAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to open account", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Summary returns balance, limit and available credit.
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	summary, err := h.ledger.GetSummary(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get summary", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Statement returns the transaction history plus current summary.
func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	stmt, err := h.statements.StatementFor(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get statement", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementResponse{
		AccountID:    stmt.AccountID,
		CustomerName: stmt.CustomerName,
		Balance:      stmt.Balance,
		CreditLimit:  stmt.CreditLimit,
		Available:    stmt.Available,
		Transactions: dto.TransactionsFromDomain(stmt.Transactions),
	})
}
