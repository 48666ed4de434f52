package advisor

import (
	"context"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
)

var _ service.LimitAdvisor = (*StaticAdvisor)(nil)

// StaticAdvisor serves multipliers from a fixed per-country table, keyed
// "endpoint:country" with an "endpoint:*" wildcard fallback. Useful for
// deployments that tune regions by hand instead of running a model service.
type StaticAdvisor struct {
	multipliers map[string]float64
}

// NewStaticAdvisor creates an advisor over the given table.
func NewStaticAdvisor(multipliers map[string]float64) *StaticAdvisor {
	return &StaticAdvisor{multipliers: multipliers}
}

// SuggestMultiplier returns the configured multiplier, 1.0 when unlisted.
func (a *StaticAdvisor) SuggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) (float64, error) {
	if m, ok := a.multipliers[endpoint+":"+geo.CountryCode]; ok {
		return m, nil
	}
	if m, ok := a.multipliers[endpoint+":*"]; ok {
		return m, nil
	}
	return 1.0, nil
}

// Identity names the advisor for the policy descriptor.
func (a *StaticAdvisor) Identity() string {
	return "static"
}
