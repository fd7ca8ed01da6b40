package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	insufficientTokensMessage = "You do not have enough tokens. Please purchase more tokens or upgrade your plan."
)

type Handler struct {
	manager Manager
}

func NewHandler(manager Manager) *Handler {
	return &Handler{manager: manager}
}

type DeductRequest struct {
	ServiceName string `json:"service_name" binding:"required"`
}

type DeductResponse struct {
	NewBalance  int    `json:"newBalance"`
	ServiceName string `json:"serviceName"`
	Replayed    bool   `json:"replayed,omitempty"`
}

// GetWallet godoc
// @Summary      Current token balance and recent transactions
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} api.Envelope
// @Failure      401 {object} api.ErrorResponse
// @Router       /api/v1/wallet [get]
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	balance, err := h.manager.GetBalance(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Get wallet failed")
		api.Fail(c, http.StatusInternalServerError, "failed to load wallet")
		return
	}

	api.OK(c, http.StatusOK, balance)
}

// Deduct godoc
// @Summary      Deduct tokens for a service
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays an earlier debit with the same key"
// @Param        request body DeductRequest true "Service to charge"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} api.ErrorResponse
// @Router       /api/v1/wallet/deduct [post]
func (h *Handler) Deduct(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req DeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "service_name is required and must be a string")
		return
	}

	res, err := h.manager.DeductTokens(c.Request.Context(), DebitRequest{
		UserID:      userID,
		ServiceName: req.ServiceName,
		Metadata: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"userAgent": c.Request.UserAgent(),
		},
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientTokens):
			api.Fail(c, http.StatusPaymentRequired, insufficientTokensMessage)
		case errors.Is(err, ErrServiceNotConfigured):
			api.Fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrIdempotencyKeyReused):
			api.Fail(c, http.StatusConflict, err.Error())
		default:
			logger.WithError(err).WithField("user_id", userID).Error("Deduct tokens failed")
			api.Fail(c, http.StatusInternalServerError, "failed to deduct tokens")
		}
		return
	}

	api.OK(c, http.StatusOK, DeductResponse{
		NewBalance:  res.NewBalance,
		ServiceName: req.ServiceName,
		Replayed:    res.Replayed,
	})
}

// ListTransactions godoc
// @Summary      Transaction history, newest first
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit query int false "1..1000, default 100"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := DefaultHistoryLimit
	if raw, present := c.GetQuery("limit"); present {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxHistoryLimit {
			api.Fail(c, http.StatusBadRequest, ErrInvalidLimit.Error())
			return
		}
		limit = n
	}

	txs, err := h.manager.GetTransactionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Get transactions failed")
		api.Fail(c, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	api.OK(c, http.StatusOK, txs)
}

// Reconcile godoc
// @Summary      Compare a wallet's balance with its ledger
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} api.Envelope
// @Failure      404 {object} api.ErrorResponse
// @Router       /api/v1/admin/wallets/{userID}/reconcile [get]
func (h *Handler) Reconcile(c *gin.Context) {
	userID := c.Param("userID")

	rec, err := h.manager.Reconcile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			api.Fail(c, http.StatusNotFound, "wallet not found")
			return
		}
		logger.WithError(err).WithField("user_id", userID).Error("Reconcile wallet failed")
		api.Fail(c, http.StatusInternalServerError, "failed to reconcile wallet")
		return
	}

	api.OK(c, http.StatusOK, rec)
}
