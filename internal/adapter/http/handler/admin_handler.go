package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/adapter/http/dto"
	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

// AdminLedgerService defines the staff operations needed by AdminHandler.
type AdminLedgerService interface {
	RecordPayment(ctx context.Context, input usecase.PaymentInput) (*domain.Transaction, error)
	SetCreditLimit(ctx context.Context, accountID string, newLimit decimal.Decimal) (*domain.Account, error)
	ListOutstanding(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// AggregateService defines the dashboard aggregates needed by AdminHandler.
type AggregateService interface {
	AggregateOutstanding(ctx context.Context) (*usecase.OutstandingAggregate, error)
}

// ReconciliationService defines the replay check needed by AdminHandler.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error)
}

// AdminHandler handles staff back-office requests.
type AdminHandler struct {
	ledger     AdminLedgerService
	statements AggregateService
	recon      ReconciliationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger AdminLedgerService, statements AggregateService, recon ReconciliationService) *AdminHandler {
	return &AdminHandler{ledger: ledger, statements: statements, recon: recon}
}

// RecordPayment records a cash payment collected by staff.
func (h *AdminHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	var req dto.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.ledger.RecordPayment(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record payment", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// SetCreditLimit changes an account's credit limit.
func (h *AdminHandler) SetCreditLimit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	var req dto.SetCreditLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.ledger.SetCreditLimit(r.Context(), id, req.CreditLimit)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to set credit limit", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ListOutstanding lists accounts with a positive balance.
func (h *AdminHandler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.ledger.ListOutstanding(r.Context(), limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list outstanding accounts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}

// AggregateOutstanding returns the dashboard total.
func (h *AdminHandler) AggregateOutstanding(w http.ResponseWriter, r *http.Request) {
	agg, err := h.statements.AggregateOutstanding(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to aggregate outstanding", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, agg)
}

// Reconcile replays an account's ledger against its stored balance.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	result, err := h.recon.ReconcileAccount(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
