package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// ListPlans godoc
// @Summary      List subscription plans
// @Tags         plans
// @Produce      json
// @Success      200 {object} api.Envelope
// @Failure      500 {object} api.ErrorResponse
// @Router       /api/v1/plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.svc.GetAllPlans(c.Request.Context())
	if err != nil {
		logger.WithError(err).Error("Get plans failed")
		api.Fail(c, http.StatusInternalServerError, "failed to load plans")
		return
	}

	api.OK(c, http.StatusOK, plans)
}
