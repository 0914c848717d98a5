package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sub4sub/backend/internal/services"
)

type ReferralHandler struct {
	referral *services.ReferralService
}

func NewReferralHandler(referral *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referral: referral}
}

// Stats returns the caller's referral performance
// @Summary Referral stats
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.ReferralStats
// @Failure 401 {object} services.ErrorResponse
// @Router /referrals/stats [get]
func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	stats, err := h.referral.Stats(userID)
	if err != nil {
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// QR returns the caller's referral link as a base64 PNG QR code
// @Summary Referral QR code
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{qrImage=string}
// @Failure 401 {object} services.ErrorResponse
// @Router /referrals/qr [get]
func (h *ReferralHandler) QR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	image, err := h.referral.ReferralQR(userID)
	if err != nil {
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"qrImage": image})
}
