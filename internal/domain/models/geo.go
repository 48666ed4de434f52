package models

import (
	"time"

	"github.com/rlgprojects/admission/pkg/constants"
)

// WorkingHours is a local-time interval of expected legitimate traffic,
// expressed as [StartHour, EndHour) in the region's timezone.
type WorkingHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// GeoContext is the per-request geographic context used for adaptive limits.
// Absence of resolvable geography never blocks a request; DefaultGeoContext
// supplies the documented fallback.
type GeoContext struct {
	CountryCode  string       `json:"country_code"`
	Timezone     string       `json:"timezone"`
	WorkingHours WorkingHours `json:"working_hours"`
}

// DefaultGeoContext returns the documented fallback context
// (UNKNOWN country, UTC, 9-17 working hours).
func DefaultGeoContext() GeoContext {
	return GeoContext{
		CountryCode: constants.CountryUnknown,
		Timezone:    constants.TimezoneFallback,
		WorkingHours: WorkingHours{
			StartHour: constants.DefaultWorkingHoursStart,
			EndHour:   constants.DefaultWorkingHoursEnd,
		},
	}
}

// InWorkingHours reports whether t falls inside the context's working hours
// in the context's timezone. Unparseable timezones degrade to UTC.
func (g GeoContext) InWorkingHours(t time.Time) bool {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hour := t.In(loc).Hour()
	return hour >= g.WorkingHours.StartHour && hour < g.WorkingHours.EndHour
}
