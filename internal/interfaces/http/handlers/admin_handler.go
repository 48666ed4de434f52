package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

// AdminHandler serves the administrative surface: limit resets and the
// machine-readable policy.
type AdminHandler struct {
	svc    service.AdmissionService
	logger logger.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(svc service.AdmissionService, log logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &AdminHandler{
		svc:    svc,
		logger: log.WithComponent("admin_handler"),
	}
}

type resetRequest struct {
	// ClientKeyPrefix scopes the reset; empty clears every window counter.
	ClientKeyPrefix string `json:"client_key_prefix"`
}

type resetResponse struct {
	Removed int `json:"removed"`
}

// ResetLimits clears window counters under the given client key prefix.
func (h *AdminHandler) ResetLimits(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.ErrInvalidRequest("invalid reset request").WithCause(err)
		c.JSON(errors.HTTPStatusOf(appErr), errors.ToErrorResponse(appErr))
		return
	}

	removed, err := h.svc.ResetLimits(c.Request.Context(), req.ClientKeyPrefix)
	if err != nil {
		h.logger.Error(c.Request.Context(), "limit reset failed", err)
		c.JSON(errors.HTTPStatusOf(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, resetResponse{Removed: removed})
}

// GetPolicy returns the active policy descriptor.
func (h *AdminHandler) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Policy())
}
