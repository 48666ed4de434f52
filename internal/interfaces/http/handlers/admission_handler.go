// Package handlers carries the HTTP handlers of the admission service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/internal/interfaces/http/middleware"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

// AdmissionHandler serves the decision API for sidecar and proxy callers that
// enforce admission themselves.
type AdmissionHandler struct {
	svc    service.AdmissionService
	logger logger.Logger
}

// NewAdmissionHandler creates the handler.
func NewAdmissionHandler(svc service.AdmissionService, log logger.Logger) *AdmissionHandler {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &AdmissionHandler{
		svc:    svc,
		logger: log.WithComponent("admission_handler"),
	}
}

type checkRequest struct {
	Endpoint      string  `json:"endpoint" binding:"required"`
	Cost          float64 `json:"cost"`
	SourceAddress string  `json:"source_address"`
	UserAgent     string  `json:"user_agent"`
	PrincipalID   string  `json:"principal_id"`
}

type decisionResponse struct {
	Admitted          bool    `json:"admitted"`
	Limit             int     `json:"limit"`
	Remaining         float64 `json:"remaining"`
	ResetAt           int64   `json:"reset_at"`
	RetryAfterSeconds *int    `json:"retry_after_seconds,omitempty"`
	AnomalyScore      float64 `json:"anomaly_score"`
	Degraded          bool    `json:"degraded,omitempty"`
}

func toDecisionResponse(d *models.AdmissionDecision) decisionResponse {
	return decisionResponse{
		Admitted:          d.Admitted,
		Limit:             d.Limit,
		Remaining:         d.Remaining,
		ResetAt:           d.ResetAt,
		RetryAfterSeconds: d.RetryAfterSeconds,
		AnomalyScore:      d.AnomalyScore,
		Degraded:          d.Degraded,
	}
}

// Check decides admission for a request described in the body. The decision
// is returned with status 200 either way; enforcement is the caller's job.
func (h *AdmissionHandler) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.ErrInvalidRequest("invalid check request").WithCause(err)
		c.JSON(errors.HTTPStatusOf(appErr), errors.ToErrorResponse(appErr))
		return
	}

	raw := models.RawRequest{
		RemoteAddr:  req.SourceAddress,
		UserAgent:   req.UserAgent,
		PrincipalID: req.PrincipalID,
	}
	if raw.RemoteAddr == "" {
		raw.RemoteAddr = c.ClientIP()
		raw.UserAgent = c.Request.UserAgent()
	}

	decision, err := h.svc.Admit(c.Request.Context(), raw, req.Endpoint, req.Cost)
	if err != nil {
		h.logger.Error(c.Request.Context(), "check failed", err,
			logger.String("endpoint", req.Endpoint),
		)
		c.JSON(errors.HTTPStatusOf(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, toDecisionResponse(decision))
}

// Admitted terminates a middleware-protected route, echoing the decision the
// middleware already made.
func (h *AdmissionHandler) Admitted(c *gin.Context) {
	decision, ok := middleware.DecisionFrom(c)
	if !ok {
		appErr := errors.ErrInternal("admission decision missing from request context")
		c.JSON(errors.HTTPStatusOf(appErr), errors.ToErrorResponse(appErr))
		return
	}

	c.JSON(http.StatusOK, toDecisionResponse(decision))
}
