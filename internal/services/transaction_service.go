package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/campusbank/backend/internal/ledger"
	"github.com/campusbank/backend/internal/middleware"
	"github.com/campusbank/backend/internal/models"
)

type TransactionService struct {
	engine    *ledger.Engine
	projector *ledger.Projector
	registry  *ledger.Registry
	validator *ValidationHelper
}

func NewTransactionService(engine *ledger.Engine, projector *ledger.Projector, registry *ledger.Registry) *TransactionService {
	return &TransactionService{
		engine:    engine,
		projector: projector,
		registry:  registry,
		validator: NewValidationHelper(),
	}
}

// MoneyRequest is the payload shared by deposit and withdraw.
type MoneyRequest struct {
	Amount string `json:"amount" validate:"required" example:"100.00"` // Decimal string, two places
	Note   string `json:"note" validate:"max=200"`
}

// TransferRequest adds the recipient account number.
type TransferRequest struct {
	ToAccount string `json:"toAccount" validate:"required,len=10,numeric" example:"1234567890"`
	Amount    string `json:"amount" validate:"required" example:"25.50"`
	Note      string `json:"note" validate:"max=200"`
}

// Deposit credits the authenticated account
// @Summary Deposit funds
// @Description Credit an amount to the authenticated account
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MoneyRequest true "Deposit request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /transactions/deposit [post]
func (ts *TransactionService) Deposit(w http.ResponseWriter, r *http.Request) {
	ts.applyMoneyOp(w, r, ts.engine.Deposit)
}

// Withdraw debits the authenticated account
// @Summary Withdraw funds
// @Description Debit an amount from the authenticated account
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MoneyRequest true "Withdraw request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /transactions/withdraw [post]
func (ts *TransactionService) Withdraw(w http.ResponseWriter, r *http.Request) {
	ts.applyMoneyOp(w, r, ts.engine.Withdraw)
}

type moneyOp func(ctx context.Context, accountNo string, amount decimal.Decimal, note string) (*models.Transaction, error)

func (ts *TransactionService) applyMoneyOp(w http.ResponseWriter, r *http.Request, op moneyOp) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req MoneyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	txn, err := op(r.Context(), accountNo, amount, strings.TrimSpace(req.Note))
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": txn,
	})
}

// Transfer moves funds to another account
// @Summary Transfer funds
// @Description Transfer an amount from the authenticated account to another account
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer request"
// @Success 201 {object} ledger.TransferReceipt
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Recipient not found"
// @Router /transactions/transfer [post]
func (ts *TransactionService) Transfer(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req TransferRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	log.Printf("[TRANSFER] Request: from=%s, to=%s, amount=%s", accountNo, req.ToAccount, amount.StringFixed(2))

	receipt, err := ts.engine.Transfer(r.Context(), accountNo, req.ToAccount, amount, strings.TrimSpace(req.Note))
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"receipt": receipt,
	})
}

// ListTransactions retrieves the account's transactions with filter and sort
// @Summary List transactions
// @Description Get the authenticated account's transactions, optionally filtered by kind and sorted
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Transaction kind or 'all'"
// @Param sort query string false "newest | oldest | amount-high | amount-low"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 400 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = ledger.KindAll
	}
	order := ledger.SortOrder(r.URL.Query().Get("sort"))
	if order == "" {
		order = ledger.NewestFirst
	}

	seq, err := ts.projector.Filtered(r.Context(), accountNo, kind, order)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			sendLedgerError(w, err)
		} else {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		}
		return
	}

	transactions := []models.Transaction{}
	for t := range seq {
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetRecentTransactions retrieves recent transactions
// @Summary Get recent transactions
// @Description Get the authenticated account's most recent transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /transactions/recent [get]
func (ts *TransactionService) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	seq, err := ts.projector.Recent(r.Context(), accountNo, req.Limit)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	transactions := []models.Transaction{}
	for t := range seq {
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// AccountNameEnquiry resolves an account number to its holder's name
// @Summary Get account name
// @Description Resolve a transfer target account number to the holder's display name
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountNo query string true "Account number"
// @Success 200 {object} object{accountNo=string,accountName=string,status=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/name-enquiry [get]
func (ts *TransactionService) AccountNameEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNo := strings.TrimSpace(r.URL.Query().Get("accountNo"))
	log.Printf("[ACCOUNT_ENQUIRY] Name enquiry for accountNo: %s from IP: %s", accountNo, r.RemoteAddr)

	if !isValidAccountNumber(accountNo) {
		SendErrorResponse(w, "invalid account number format", http.StatusBadRequest, nil)
		return
	}

	rec, err := ts.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNo":   accountNo,
		"accountName": rec.Account.DisplayName,
		"status":      "SUCCESS",
	})
}

// AccountBalanceEnquiry retrieves the authenticated account's balance
// @Summary Get account balance
// @Description Retrieve the authenticated account's current balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{accountNo=string,availableBalance=string,status=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-enquiry [get]
func (ts *TransactionService) AccountBalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rec, err := ts.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNo":        accountNo,
		"availableBalance": rec.Account.Balance.StringFixed(2),
		"status":           "SUCCESS",
	})
}

// GetBalanceHistory returns the chart series of balance snapshots
// @Summary Get balance history
// @Description Get the day-sampled balance history used for the dashboard chart
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.BalanceSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-history [get]
func (ts *TransactionService) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rec, err := ts.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec.History)
}

// parseAmount parses a decimal amount string; malformed input maps to the
// same error as an out-of-precision amount.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	return amount, nil
}

// sendLedgerError maps ledger sentinel errors to HTTP responses.
func sendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrSelfTransfer):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrRecipientNotFound),
		errors.Is(err, ledger.ErrNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrPartialTransfer):
		log.Printf("[LEDGER] Partial transfer reported to caller: %v", err)
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
	default:
		log.Printf("[LEDGER] Operation failed: %v", err)
		SendErrorResponse(w, "Failed to process operation", http.StatusInternalServerError, nil)
	}
}

var accountNumberRegex = regexp.MustCompile(`^[0-9]{10}$`)

func isValidAccountNumber(s string) bool {
	return accountNumberRegex.MatchString(s)
}
