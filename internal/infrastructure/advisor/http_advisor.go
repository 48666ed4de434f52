// Package advisor implements the limit advisor contract. The HTTP advisor
// queries an external model service for limit multipliers; the static advisor
// serves a fixed table for deployments without one.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.LimitAdvisor = (*HTTPAdvisor)(nil)

// HTTPAdvisor asks a remote suggestion service for a limit multiplier. The
// caller owns the deadline; this type never retries, the calculator treats
// any failure as "no suggestion".
type HTTPAdvisor struct {
	url    string
	client *http.Client
	logger logger.Logger
}

type suggestionRequest struct {
	Endpoint    string `json:"endpoint"`
	CountryCode string `json:"country_code"`
}

type suggestionResponse struct {
	Multiplier float64 `json:"multiplier"`
}

// NewHTTPAdvisor creates an advisor against the given suggestion URL.
func NewHTTPAdvisor(url string, timeout time.Duration, log logger.Logger) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = time.Second
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &HTTPAdvisor{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithComponent("http_advisor"),
	}
}

// SuggestMultiplier posts the endpoint and region to the suggestion service.
func (a *HTTPAdvisor) SuggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) (float64, error) {
	payload, err := json.Marshal(suggestionRequest{
		Endpoint:    endpoint,
		CountryCode: geo.CountryCode,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal suggestion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("suggestion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("suggestion service returned status %d", resp.StatusCode)
	}

	var suggestion suggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&suggestion); err != nil {
		return 0, fmt.Errorf("failed to decode suggestion response: %w", err)
	}

	return suggestion.Multiplier, nil
}

// Identity names the advisor for the policy descriptor.
func (a *HTTPAdvisor) Identity() string {
	return "http:" + a.url
}
