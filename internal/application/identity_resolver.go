// Package application implements the admission control core services:
// identity resolution, behavior tracking, adaptive limit calculation, and the
// admission gateway orchestrating them.
package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

// ContextResolver turns a raw request into a stable (ClientKey, GeoContext)
// pair. It is deterministic and side-effect free apart from the bounded
// geography cache.
type ContextResolver struct {
	secret   []byte
	geo      service.GeoResolver
	geoCache *gocache.Cache
	logger   logger.Logger
}

// NewContextResolver creates a resolver. The key-derivation secret is fetched
// once at construction; a secret rotation requires a process restart (one
// key-derivation epoch per process).
func NewContextResolver(ctx context.Context, secrets service.SecretProvider, geo service.GeoResolver, cacheTTL time.Duration, log logger.Logger) (*ContextResolver, error) {
	secret, err := secrets.KeyDerivationSecret(ctx)
	if err != nil {
		return nil, err
	}
	if cacheTTL <= 0 {
		cacheTTL = constants.GeoCacheTTL
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &ContextResolver{
		secret:   secret,
		geo:      geo,
		geoCache: gocache.New(cacheTTL, 2*cacheTTL),
		logger:   log.WithComponent("context_resolver"),
	}, nil
}

// Resolve derives the client key and geographic context for a request. It
// never fails: unresolvable identity degrades to the anonymous bucket and
// unresolvable geography to the UNKNOWN default.
func (r *ContextResolver) Resolve(ctx context.Context, raw models.RawRequest) (string, models.GeoContext) {
	return r.deriveClientKey(ctx, raw), r.resolveGeo(ctx, raw.RemoteAddr)
}

// deriveClientKey returns an irreversible HMAC-SHA256 hash of the caller
// identity. The authenticated principal wins over the address+user-agent
// pair. Raw identity material never leaves this function.
func (r *ContextResolver) deriveClientKey(ctx context.Context, raw models.RawRequest) string {
	var material string
	switch {
	case raw.PrincipalID != "":
		material = "principal:" + raw.PrincipalID
	case raw.RemoteAddr != "":
		material = "addr:" + hostOnly(raw.RemoteAddr) + "|ua:" + raw.UserAgent
	default:
		r.logger.Warn(ctx, "client identity unresolvable, using anonymous bucket",
			logger.Error(errors.ErrMalformedContext("request carries no principal or source address")),
		)
		return constants.AnonymousClientKey
	}

	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(material))
	return hex.EncodeToString(mac.Sum(nil))
}

// resolveGeo looks up the request's geography, caching the enriched context
// by country code. Lookup failures and unknown origins both fall back to the
// documented default.
func (r *ContextResolver) resolveGeo(ctx context.Context, sourceAddr string) models.GeoContext {
	if sourceAddr == "" || r.geo == nil {
		return models.DefaultGeoContext()
	}

	resolved, err := r.geo.Lookup(ctx, hostOnly(sourceAddr))
	if err != nil {
		r.logger.Warn(ctx, "geography lookup failed, using default context",
			logger.Error(err),
		)
		return models.DefaultGeoContext()
	}
	if resolved == nil {
		return models.DefaultGeoContext()
	}

	if cached, ok := r.geoCache.Get(resolved.CountryCode); ok {
		return cached.(models.GeoContext)
	}

	geo := *resolved
	if geo.Timezone == "" {
		geo.Timezone = constants.TimezoneFallback
	}
	if geo.WorkingHours.EndHour <= geo.WorkingHours.StartHour {
		geo.WorkingHours = models.WorkingHours{
			StartHour: constants.DefaultWorkingHoursStart,
			EndHour:   constants.DefaultWorkingHoursEnd,
		}
	}

	r.geoCache.SetDefault(geo.CountryCode, geo)
	return geo
}

// hostOnly strips an optional port from host:port addresses.
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
