package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/interfaces/http/handlers"
	"github.com/rlgprojects/admission/pkg/errors"
)

type fakeAdmissionService struct {
	decision *models.AdmissionDecision
	admitErr error
	removed  int
	resetErr error
	policy   models.PolicyDescriptor
}

func (f *fakeAdmissionService) Admit(ctx context.Context, raw models.RawRequest, endpoint string, cost float64) (*models.AdmissionDecision, error) {
	return f.decision, f.admitErr
}

func (f *fakeAdmissionService) ResetLimits(ctx context.Context, clientKeyPrefix string) (int, error) {
	return f.removed, f.resetErr
}

func (f *fakeAdmissionService) Policy() models.PolicyDescriptor {
	return f.policy
}

func newAdminEngine(svc *fakeAdmissionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewAdminHandler(svc, nil)

	engine := gin.New()
	engine.POST("/admin/limits/reset", handler.ResetLimits)
	engine.GET("/admin/policy", handler.GetPolicy)
	return engine
}

func TestAdminHandler_ResetLimits(t *testing.T) {
	engine := newAdminEngine(&fakeAdmissionService{removed: 3})

	req := httptest.NewRequest(http.MethodPost, "/admin/limits/reset",
		strings.NewReader(`{"client_key_prefix": "abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"removed": 3}`, resp.Body.String())
}

func TestAdminHandler_ResetLimitsBadBody(t *testing.T) {
	engine := newAdminEngine(&fakeAdmissionService{})

	req := httptest.NewRequest(http.MethodPost, "/admin/limits/reset",
		strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminHandler_ResetLimitsFailure(t *testing.T) {
	engine := newAdminEngine(&fakeAdmissionService{
		resetErr: errors.ErrInternal("reset failed"),
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/limits/reset",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestAdminHandler_GetPolicy(t *testing.T) {
	engine := newAdminEngine(&fakeAdmissionService{
		policy: models.PolicyDescriptor{
			Version:        "policy-1",
			GeneratedAt:    time.Now().UTC(),
			AdvisorID:      "static",
			OffHoursPolicy: "relax",
			Compliance:     []string{"GDPR", "CCPA"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "policy-1")
	assert.Contains(t, resp.Body.String(), "GDPR")
}
