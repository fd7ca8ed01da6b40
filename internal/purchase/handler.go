package purchase

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

type Handler struct {
	processor Processor
}

func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor}
}

type PurchaseRequest struct {
	PlanID    string `json:"plan_id"`
	PaymentID string `json:"payment_id"`
}

// Purchase godoc
// @Summary      Buy a token plan
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body PurchaseRequest true "Plan and payment reference"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /api/v1/wallet/purchase [post]
func (h *Handler) Purchase(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlanID == "" {
		api.Fail(c, http.StatusBadRequest, "plan_id is required and must be a string")
		return
	}
	if req.PaymentID == "" {
		api.Fail(c, http.StatusBadRequest, "payment_id is required and must be a string")
		return
	}

	res, err := h.processor.ProcessPurchase(c.Request.Context(), userID, req.PlanID, req.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPlanNotFound):
			api.Fail(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, ErrPaymentAlreadyProcessed):
			api.Fail(c, http.StatusConflict, "Payment already processed")
		case errors.Is(err, ErrPaymentIDRequired):
			api.Fail(c, http.StatusBadRequest, err.Error())
		default:
			logger.WithError(err).WithField("user_id", userID).Error("Purchase failed")
			api.Fail(c, http.StatusInternalServerError, "failed to process purchase")
		}
		return
	}

	api.OK(c, http.StatusOK, res)
}

// ListPurchases godoc
// @Summary      Purchase receipts of the caller
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} api.Envelope
// @Router       /api/v1/wallet/purchases [get]
func (h *Handler) ListPurchases(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	purchases, err := h.processor.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("List purchases failed")
		api.Fail(c, http.StatusInternalServerError, "failed to load purchases")
		return
	}

	api.OK(c, http.StatusOK, purchases)
}
