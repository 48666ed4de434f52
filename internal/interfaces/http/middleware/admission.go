// Package middleware carries the gin middleware of the admission service:
// enforcement, request identification, and observability.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

// decisionContextKey carries the admission decision to downstream handlers.
const decisionContextKey = "admission_decision"

// costHeader lets a trusted upstream proxy weight a request; absent or
// invalid values charge the default cost of 1.
const costHeader = "X-Admission-Cost"

// principalHeader carries the authenticated principal id when a trusted
// upstream auth proxy has already verified the caller.
const principalHeader = "X-Principal-ID"

// proxyKeyHeader authenticates the upstream proxy to the trust gate.
const proxyKeyHeader = "X-Admission-Proxy-Key"

// HeaderTrust gates the caller-supplied cost and principal headers. Both are
// forgeable by the rate-limited client itself (a rotating forged principal
// would mint a fresh window per request), so they are ignored unless the
// request presents the configured proxy secret. The zero value trusts nobody.
type HeaderTrust struct {
	ProxySecret string
}

func (t HeaderTrust) allows(c *gin.Context) bool {
	if t.ProxySecret == "" {
		return false
	}
	presented := c.GetHeader(proxyKeyHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(t.ProxySecret)) == 1
}

// Admission enforces the adaptive limit for the endpoint named in the route
// parameter. Use AdmissionFor to protect a route under a fixed endpoint name.
func Admission(svc service.AdmissionService, trust HeaderTrust, log logger.Logger) gin.HandlerFunc {
	return admission(svc, trust, log, func(c *gin.Context) string {
		return c.Param("endpoint")
	})
}

// AdmissionFor enforces the adaptive limit for a fixed endpoint name. This is
// the embeddable form for services mounting protected routes directly.
func AdmissionFor(svc service.AdmissionService, endpoint string, trust HeaderTrust, log logger.Logger) gin.HandlerFunc {
	return admission(svc, trust, log, func(*gin.Context) string {
		return endpoint
	})
}

func admission(svc service.AdmissionService, trust HeaderTrust, log logger.Logger, endpointOf func(*gin.Context) string) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.WithComponent("admission_middleware")

	return func(c *gin.Context) {
		endpoint := endpointOf(c)
		if endpoint == "" {
			respondError(c, errors.ErrInvalidRequest("endpoint name required"))
			return
		}

		trusted := trust.allows(c)

		cost := 1.0
		if trusted {
			if raw := c.GetHeader(costHeader); raw != "" {
				if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
					cost = parsed
				}
			}
		}

		raw := models.RawRequest{
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}
		if trusted {
			raw.PrincipalID = c.GetHeader(principalHeader)
		}

		decision, err := svc.Admit(c.Request.Context(), raw, endpoint, cost)
		if err != nil {
			log.Error(c.Request.Context(), "admission failed", err,
				logger.String("endpoint", endpoint),
			)
			respondError(c, err)
			return
		}

		writeDecisionHeaders(c, svc.Policy().Version, decision)

		if !decision.Admitted {
			if retry := decision.RetryAfter(); retry > 0 {
				c.Header("Retry-After", strconv.Itoa(retry))
			}
			response := errors.ToErrorResponse(errors.ErrOverLimit(endpoint, decision.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response)
			return
		}

		c.Set(decisionContextKey, decision)
		c.Request = c.Request.WithContext(context.WithValue(
			c.Request.Context(), constants.ContextKeyEndpoint, endpoint,
		))
		c.Next()
	}
}

// DecisionFrom returns the admission decision stored by the middleware.
func DecisionFrom(c *gin.Context) (*models.AdmissionDecision, bool) {
	value, ok := c.Get(decisionContextKey)
	if !ok {
		return nil, false
	}
	decision, ok := value.(*models.AdmissionDecision)
	return decision, ok
}

// writeDecisionHeaders exposes the accounting on every response, admitted or
// not, so well-behaved clients can pace themselves.
func writeDecisionHeaders(c *gin.Context, policyVersion string, d *models.AdmissionDecision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.FormatFloat(d.Remaining, 'f', -1, 64))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt, 10))
	c.Header("X-RateLimit-Policy", policyVersion)
	c.Header("X-RateLimit-AnomalyScore", strconv.FormatFloat(d.AnomalyScore, 'f', 3, 64))
	if d.Degraded {
		c.Header("X-RateLimit-Degraded", "true")
	}
}

func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatusOf(err), errors.ToErrorResponse(err))
}
