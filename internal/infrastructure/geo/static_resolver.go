// Package geo resolves request source addresses to geographic contexts from a
// statically configured CIDR table.
package geo

import (
	"context"
	"fmt"
	"net"
	"sort"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.GeoResolver = (*StaticResolver)(nil)

// countryProfile carries the enrichment attached to a resolved country.
type countryProfile struct {
	timezone string
	hours    models.WorkingHours
}

// countryProfiles covers the regions the service is deployed for. Countries
// absent from this table resolve with UTC and the default working hours.
var countryProfiles = map[string]countryProfile{
	"KE": {timezone: "Africa/Nairobi", hours: models.WorkingHours{StartHour: 8, EndHour: 17}},
	"TZ": {timezone: "Africa/Dar_es_Salaam", hours: models.WorkingHours{StartHour: 8, EndHour: 17}},
	"UG": {timezone: "Africa/Kampala", hours: models.WorkingHours{StartHour: 8, EndHour: 17}},
	"RW": {timezone: "Africa/Kigali", hours: models.WorkingHours{StartHour: 8, EndHour: 17}},
	"DE": {timezone: "Europe/Berlin", hours: models.WorkingHours{StartHour: 9, EndHour: 17}},
	"FR": {timezone: "Europe/Paris", hours: models.WorkingHours{StartHour: 9, EndHour: 17}},
	"GB": {timezone: "Europe/London", hours: models.WorkingHours{StartHour: 9, EndHour: 17}},
	"US": {timezone: "America/New_York", hours: models.WorkingHours{StartHour: 9, EndHour: 17}},
}

type network struct {
	cidr    *net.IPNet
	country string
}

// StaticResolver maps source addresses to countries through a configured
// CIDR table. Longest prefix wins so nested networks behave predictably.
type StaticResolver struct {
	networks []network
	logger   logger.Logger
}

// NewStaticResolver parses the CIDR-to-country table. Invalid CIDRs fail
// construction rather than silently shrinking coverage.
func NewStaticResolver(networks map[string]string, log logger.Logger) (*StaticResolver, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	parsed := make([]network, 0, len(networks))
	for cidr, country := range networks {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid geo network %q: %w", cidr, err)
		}
		parsed = append(parsed, network{cidr: ipNet, country: country})
	}

	// Longest prefix first.
	sort.Slice(parsed, func(i, j int) bool {
		onesI, _ := parsed[i].cidr.Mask.Size()
		onesJ, _ := parsed[j].cidr.Mask.Size()
		return onesI > onesJ
	})

	return &StaticResolver{
		networks: parsed,
		logger:   log.WithComponent("geo_resolver"),
	}, nil
}

// Lookup resolves the source address. An address outside every configured
// network is an expected unknown, returned as (nil, nil).
func (r *StaticResolver) Lookup(ctx context.Context, sourceAddress string) (*models.GeoContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ip := net.ParseIP(sourceAddress)
	if ip == nil {
		return nil, fmt.Errorf("unparseable source address")
	}

	for _, n := range r.networks {
		if n.cidr.Contains(ip) {
			return r.enrich(n.country), nil
		}
	}
	return nil, nil
}

func (r *StaticResolver) enrich(country string) *models.GeoContext {
	geo := &models.GeoContext{CountryCode: country}
	if profile, ok := countryProfiles[country]; ok {
		geo.Timezone = profile.timezone
		geo.WorkingHours = profile.hours
	}
	return geo
}
