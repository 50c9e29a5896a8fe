package services

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/campusbank/backend/internal/ledger"
	"github.com/campusbank/backend/internal/middleware"
	"github.com/campusbank/backend/internal/models"
)

// Issued cards expire five years out.
const cardValidityYears = 5

// CardService issues and serves the simulated payment card attached to an
// account. Card data is cosmetic; nothing debits through it.
type CardService struct {
	registry *ledger.Registry
}

func NewCardService(registry *ledger.Registry) *CardService {
	return &CardService{registry: registry}
}

// GenerateCard issues a new simulated card
// @Summary Generate card
// @Description Issue a new simulated payment card for the authenticated account, replacing any existing one
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.BankCard
// @Failure 404 {object} ErrorResponse
// @Router /cards/generate [post]
func (s *CardService) GenerateCard(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rec, err := s.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	card := &models.BankCard{
		Number:   generateCardNumber(16),
		Holder:   rec.Account.DisplayName,
		Expiry:   generateExpiryDate(),
		CVV:      generateCVV(),
		IssuedAt: time.Now(),
	}
	if err := s.registry.AttachCard(r.Context(), accountNo, card); err != nil {
		sendLedgerError(w, err)
		return
	}

	log.Printf("[CARD] Issued card %s for account %s", card.Masked(), accountNo)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(card)
}

// GetCard returns the account's current card
// @Summary Get card
// @Description Get the authenticated account's simulated payment card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.BankCard
// @Failure 404 {object} ErrorResponse "No card issued"
// @Router /cards [get]
func (s *CardService) GetCard(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rec, err := s.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if rec.Card == nil {
		SendErrorResponse(w, "No card issued", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec.Card)
}

func generateCardNumber(length int) string {
	digits := make([]byte, length)
	rand.Read(digits)
	for i, b := range digits {
		digits[i] = b%10 + '0'
	}
	return string(digits)
}

func generateExpiryDate() string {
	now := time.Now()
	return fmt.Sprintf("%02d/%02d", int(now.Month()), (now.Year()+cardValidityYears)%100)
}

func generateCVV() string {
	b := make([]byte, 3)
	rand.Read(b)
	return fmt.Sprintf("%d%d%d", b[0]%10, b[1]%10, b[2]%10)
}
