package application

import (
	"context"
	goerrors "errors"
	"math"
	"time"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

// LimitCalculator combines static endpoint defaults, optional advisor
// suggestions, working-hours adjustment, and load backpressure into the
// effective (maxUnits, window) pair for a request.
type LimitCalculator struct {
	table          models.EndpointLimitTable
	advisor        service.LimitAdvisor
	advisorTimeout time.Duration
	offHours       constants.OffHoursPolicy
	loadThreshold  float64
	logger         logger.Logger
}

// LimitCalculatorConfig configures a LimitCalculator.
type LimitCalculatorConfig struct {
	Table          models.EndpointLimitTable
	Advisor        service.LimitAdvisor // nil disables advisory input
	AdvisorTimeout time.Duration
	OffHoursPolicy constants.OffHoursPolicy
	LoadThreshold  float64
}

// NewLimitCalculator creates a calculator over the immutable limits table.
func NewLimitCalculator(cfg LimitCalculatorConfig, log logger.Logger) *LimitCalculator {
	if cfg.AdvisorTimeout <= 0 {
		cfg.AdvisorTimeout = constants.DefaultAdvisorTimeout
	}
	if cfg.OffHoursPolicy == "" {
		cfg.OffHoursPolicy = constants.OffHoursRelax
	}
	if cfg.LoadThreshold <= 0 || cfg.LoadThreshold > 1 {
		cfg.LoadThreshold = constants.DefaultLoadThreshold
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &LimitCalculator{
		table:          cfg.Table,
		advisor:        cfg.Advisor,
		advisorTimeout: cfg.AdvisorTimeout,
		offHours:       cfg.OffHoursPolicy,
		loadThreshold:  cfg.LoadThreshold,
		logger:         log.WithComponent("limit_calculator"),
	}
}

// Compute returns the effective limit for an endpoint in the given context.
// The advisor is consulted under a strict timeout; its failure is a logged
// degradation, never an error to the caller.
func (c *LimitCalculator) Compute(ctx context.Context, endpoint string, geo models.GeoContext, systemLoad float64) (int, time.Duration) {
	multiplier := c.suggestMultiplier(ctx, endpoint, geo)
	return computeLimit(c.table.Lookup(endpoint), multiplier, geo, time.Now(), c.offHours, systemLoad, c.loadThreshold)
}

// suggestMultiplier queries the advisor, mapping every failure mode to the
// identity multiplier.
func (c *LimitCalculator) suggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) float64 {
	if c.advisor == nil {
		return 1.0
	}

	advisorCtx, cancel := context.WithTimeout(ctx, c.advisorTimeout)
	defer cancel()

	multiplier, err := c.advisor.SuggestMultiplier(advisorCtx, endpoint, geo)
	if err != nil {
		if goerrors.Is(err, context.DeadlineExceeded) {
			err = errors.ErrAdvisorTimeout("advisor did not answer within the deadline").WithCause(err)
		}
		c.logger.Warn(ctx, "limit advisor unavailable, using identity multiplier",
			logger.String("endpoint", endpoint),
			logger.String("advisor", c.advisor.Identity()),
			logger.Error(err),
		)
		return 1.0
	}
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 1.0
	}
	return multiplier
}

// computeLimit is the pure core of the calculation so limit decisions are
// reproducible in tests given fixed inputs.
func computeLimit(
	base models.EndpointLimit,
	multiplier float64,
	geo models.GeoContext,
	now time.Time,
	offHours constants.OffHoursPolicy,
	systemLoad float64,
	loadThreshold float64,
) (int, time.Duration) {
	// Clamp the advisor to bound the blast radius of a misbehaving model.
	if multiplier < constants.MinLimitMultiplier {
		multiplier = constants.MinLimitMultiplier
	}
	if multiplier > constants.MaxLimitMultiplier {
		multiplier = constants.MaxLimitMultiplier
	}

	maxUnits := float64(base.MaxUnits) * multiplier

	if !geo.InWorkingHours(now) {
		switch offHours {
		case constants.OffHoursTighten:
			maxUnits *= constants.OffHoursTightenFactor
		default:
			maxUnits *= constants.OffHoursRelaxFactor
		}
	}

	// Load backpressure: above the threshold, scale down proportionally to
	// the excess, flooring at 10% of the pre-load limit.
	if systemLoad > loadThreshold && loadThreshold < 1 {
		excess := (systemLoad - loadThreshold) / (1 - loadThreshold)
		scale := 1 - excess
		if scale < constants.LoadFloorFraction {
			scale = constants.LoadFloorFraction
		}
		maxUnits *= scale
	}

	units := int(math.Floor(maxUnits))
	if units < 1 {
		units = 1
	}

	window := base.Window
	if window < time.Second {
		window = time.Second
	}

	return units, window
}
