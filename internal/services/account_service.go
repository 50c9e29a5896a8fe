package services

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/campusbank/backend/internal/ledger"
	"github.com/campusbank/backend/internal/middleware"
)

// AccountService handles the non-monetary account operations: profile
// rename, password change and full account deletion.
type AccountService struct {
	registry  *ledger.Registry
	validator *ValidationHelper
}

func NewAccountService(registry *ledger.Registry) *AccountService {
	return &AccountService{
		registry:  registry,
		validator: NewValidationHelper(),
	}
}

// UpdateProfileRequest carries a display-name change.
type UpdateProfileRequest struct {
	FullName string `json:"fullName" validate:"required,min=3,max=100" example:"John Doe"`
}

// ChangePasswordRequest carries a credential rotation.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UpdateProfile renames the account holder
// @Summary Update profile
// @Description Change the authenticated account's display name
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile update"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /accounts/profile [put]
func (s *AccountService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := s.registry.Rename(r.Context(), accountNo, strings.TrimSpace(req.FullName)); err != nil {
		sendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Renamed account %s", accountNo)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Profile updated"})
}

// ChangePassword rotates the account credential
// @Summary Change password
// @Description Change the authenticated account's password
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Password change"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse "Wrong old password"
// @Router /accounts/password [put]
func (s *AccountService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rec, err := s.registry.FindByAccountNumber(r.Context(), accountNo)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if !verifyPassword(req.OldPassword, rec.PasswordHash) {
		SendErrorResponse(w, "Current password is incorrect", http.StatusUnauthorized, nil)
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		log.Printf("[ACCOUNT] Password hashing failed for %s: %v", accountNo, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	if err := s.registry.UpdatePasswordHash(r.Context(), accountNo, hash); err != nil {
		sendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Password changed for account %s", accountNo)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password changed"})
}

// DeleteAccount removes the account and its whole transaction log
// @Summary Delete account
// @Description Permanently remove the authenticated account, its transactions and balance history
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /accounts [delete]
func (s *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountNo := middleware.AccountNumber(r)
	if accountNo == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := s.registry.Delete(r.Context(), accountNo); err != nil {
		sendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Deleted account %s", accountNo)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account deleted"})
}
