package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/sub4sub/backend/internal/services"
)

type CreditHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewCreditHandler(ledger *services.LedgerService) *CreditHandler {
	return &CreditHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// Balance returns the caller's credit balance and daily limit
// @Summary Get credit balance
// @Description Current balance, daily earn usage and lifetime counters
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.BalanceSnapshot
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /credits/balance [get]
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	snapshot, err := h.ledger.Balance(userID)
	if err != nil {
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// Spend debits credits from the caller's account
// @Summary Spend credits
// @Description Debit credits for a paid action; fails when the balance is short
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,reason=string} true "Spend request"
// @Success 200 {object} services.SpendResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /credits/spend [post]
func (h *CreditHandler) Spend(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64  `json:"amount" validate:"required,gt=0"`
		Reason string `json:"reason" validate:"required,min=2,max=50"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.ledger.Spend(userID, req.Amount, req.Reason)
	if err != nil {
		log.Printf("[CREDITS] Spend failed for user %d: %v", userID, err)
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
