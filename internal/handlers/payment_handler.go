package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/sub4sub/backend/internal/services"
)

// PaymentHandler receives gateway webhook callbacks for payments that were
// already recorded as completed by the payment subsystem, and hands them to
// the entitlement processor.
type PaymentHandler struct {
	entitlement *services.EntitlementService
	validator   *services.ValidationHelper
}

func NewPaymentHandler(entitlement *services.EntitlementService) *PaymentHandler {
	return &PaymentHandler{
		entitlement: entitlement,
		validator:   services.NewValidationHelper(),
	}
}

// Webhook applies a completed payment to the user's premium entitlement
// @Summary Payment webhook
// @Description Apply a completed payment exactly once; repeats report conflict
// @Tags payments
// @Accept json
// @Produce json
// @Param request body object{paymentId=string} true "Payment reference"
// @Success 200 {object} services.UpgradeResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID string `json:"paymentId" validate:"required"`
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

	payment, err := h.entitlement.FindPayment(req.PaymentID)
	if err != nil {
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	result, err := h.entitlement.ApplyPayment(r.Context(), payment)
	if err != nil {
		log.Printf("[PAYMENT] Apply failed for payment %s: %v", req.PaymentID, err)
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
