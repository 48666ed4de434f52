package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/pkg/constants"
)

// allHoursGeo never triggers the off-hours adjustment.
func allHoursGeo() models.GeoContext {
	return models.GeoContext{
		CountryCode:  "EAC",
		Timezone:     "UTC",
		WorkingHours: models.WorkingHours{StartHour: 0, EndHour: 24},
	}
}

// offHoursGeo always triggers the off-hours adjustment.
func offHoursGeo() models.GeoContext {
	return models.GeoContext{
		CountryCode:  "EAC",
		Timezone:     "UTC",
		WorkingHours: models.WorkingHours{StartHour: 0, EndHour: 0},
	}
}

func baseLimit(units int, window time.Duration) models.EndpointLimit {
	return models.EndpointLimit{
		MaxUnits:      units,
		Window:        window,
		FailurePolicy: constants.FailurePolicyBestEffort,
	}
}

func TestComputeLimit_AdvisorMultiplier(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		multiplier float64
		want       int
	}{
		{"identity", 1.0, 10},
		{"doubles", 2.0, 20},
		{"clamped high", 100.0, 100},
		{"clamped low", 0.01, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, window := computeLimit(baseLimit(10, time.Minute), tt.multiplier,
				allHoursGeo(), now, constants.OffHoursRelax, 0, 0.7)
			assert.Equal(t, tt.want, units)
			assert.Equal(t, time.Minute, window)
		})
	}
}

func TestComputeLimit_OffHoursPolicy(t *testing.T) {
	now := time.Now()

	units, _ := computeLimit(baseLimit(10, time.Minute), 1.0, offHoursGeo(), now,
		constants.OffHoursRelax, 0, 0.7)
	assert.Equal(t, 15, units)

	units, _ = computeLimit(baseLimit(10, time.Minute), 1.0, offHoursGeo(), now,
		constants.OffHoursTighten, 0, 0.7)
	assert.Equal(t, 5, units)

	// In working hours neither policy changes the limit.
	units, _ = computeLimit(baseLimit(10, time.Minute), 1.0, allHoursGeo(), now,
		constants.OffHoursTighten, 0, 0.7)
	assert.Equal(t, 10, units)
}

func TestComputeLimit_LoadBackpressure(t *testing.T) {
	now := time.Now()

	// Below threshold: untouched.
	units, _ := computeLimit(baseLimit(100, time.Minute), 1.0, allHoursGeo(), now,
		constants.OffHoursRelax, 0.5, 0.5)
	assert.Equal(t, 100, units)

	// Halfway into the overload band: scaled to 50%.
	units, _ = computeLimit(baseLimit(100, time.Minute), 1.0, allHoursGeo(), now,
		constants.OffHoursRelax, 0.75, 0.5)
	assert.Equal(t, 50, units)

	// Full overload: floored at 10% of base.
	units, _ = computeLimit(baseLimit(100, time.Minute), 1.0, allHoursGeo(), now,
		constants.OffHoursRelax, 1.0, 0.5)
	assert.Equal(t, 10, units)
}

func TestComputeLimit_NeverDegenerate(t *testing.T) {
	now := time.Now()

	units, window := computeLimit(baseLimit(1, 0), 0.1, offHoursGeo(), now,
		constants.OffHoursTighten, 1.0, 0.5)
	assert.Equal(t, 1, units)
	assert.Equal(t, time.Second, window)
}

func TestComputeLimit_Reproducible(t *testing.T) {
	now := time.Now()

	first, w1 := computeLimit(baseLimit(37, 90*time.Second), 1.7, allHoursGeo(), now,
		constants.OffHoursRelax, 0.6, 0.5)
	second, w2 := computeLimit(baseLimit(37, 90*time.Second), 1.7, allHoursGeo(), now,
		constants.OffHoursRelax, 0.6, 0.5)

	assert.Equal(t, first, second)
	assert.Equal(t, w1, w2)
}

type fixedAdvisor struct {
	multiplier float64
	err        error
}

func (a fixedAdvisor) SuggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) (float64, error) {
	return a.multiplier, a.err
}

func (a fixedAdvisor) Identity() string { return "fixed" }

type blockingAdvisor struct{}

func (blockingAdvisor) SuggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingAdvisor) Identity() string { return "blocking" }

func TestLimitCalculator_AdvisorSuggestion(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": baseLimit(10, 10*time.Second),
	}

	calc := NewLimitCalculator(LimitCalculatorConfig{
		Table:   table,
		Advisor: fixedAdvisor{multiplier: 2.0},
	}, nil)

	units, window := calc.Compute(context.Background(), "search", allHoursGeo(), 0)
	assert.Equal(t, 20, units)
	assert.Equal(t, 10*time.Second, window)
}

func TestLimitCalculator_AdvisorFailureIsIdentity(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": baseLimit(10, 10*time.Second),
	}

	calc := NewLimitCalculator(LimitCalculatorConfig{
		Table:   table,
		Advisor: fixedAdvisor{err: assert.AnError},
	}, nil)

	units, _ := calc.Compute(context.Background(), "search", allHoursGeo(), 0)
	assert.Equal(t, 10, units)
}

func TestLimitCalculator_AdvisorTimeoutIsIdentity(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": baseLimit(10, 10*time.Second),
	}

	calc := NewLimitCalculator(LimitCalculatorConfig{
		Table:          table,
		Advisor:        blockingAdvisor{},
		AdvisorTimeout: 10 * time.Millisecond,
	}, nil)

	start := time.Now()
	units, _ := calc.Compute(context.Background(), "search", allHoursGeo(), 0)
	assert.Equal(t, 10, units)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimitCalculator_UnknownEndpointUsesGlobalDefault(t *testing.T) {
	calc := NewLimitCalculator(LimitCalculatorConfig{
		Table: models.EndpointLimitTable{},
	}, nil)

	units, window := calc.Compute(context.Background(), "unlisted", allHoursGeo(), 0)
	assert.Equal(t, constants.DefaultMaxUnits, units)
	assert.Equal(t, constants.DefaultWindow, window)
}
