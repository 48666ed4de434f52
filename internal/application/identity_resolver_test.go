package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlgprojects/admission/internal/application"
	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/pkg/constants"
)

type staticSecrets struct {
	secret []byte
	err    error
}

func (s staticSecrets) KeyDerivationSecret(ctx context.Context) ([]byte, error) {
	return s.secret, s.err
}

type stubGeo struct {
	geo   *models.GeoContext
	err   error
	calls int
}

func (s *stubGeo) Lookup(ctx context.Context, sourceAddr string) (*models.GeoContext, error) {
	s.calls++
	return s.geo, s.err
}

func newResolver(t *testing.T, secret string, geo *stubGeo) *application.ContextResolver {
	t.Helper()

	resolver, err := application.NewContextResolver(context.Background(),
		staticSecrets{secret: []byte(secret)}, geo, time.Minute, nil)
	require.NoError(t, err)
	return resolver
}

func TestContextResolver_ClientKeyDeterministic(t *testing.T) {
	resolver := newResolver(t, "epoch-secret", &stubGeo{})
	raw := models.RawRequest{RemoteAddr: "203.0.113.7:54231", UserAgent: "curl/8.0"}

	first, _ := resolver.Resolve(context.Background(), raw)
	second, _ := resolver.Resolve(context.Background(), raw)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotContains(t, first, "203.0.113.7")
}

func TestContextResolver_PrincipalWinsOverAddress(t *testing.T) {
	resolver := newResolver(t, "epoch-secret", &stubGeo{})

	withPrincipal, _ := resolver.Resolve(context.Background(), models.RawRequest{
		RemoteAddr:  "203.0.113.7:54231",
		UserAgent:   "curl/8.0",
		PrincipalID: "user-42",
	})
	samePrincipalOtherAddr, _ := resolver.Resolve(context.Background(), models.RawRequest{
		RemoteAddr:  "198.51.100.9:1024",
		UserAgent:   "firefox",
		PrincipalID: "user-42",
	})
	addrOnly, _ := resolver.Resolve(context.Background(), models.RawRequest{
		RemoteAddr: "203.0.113.7:54231",
		UserAgent:  "curl/8.0",
	})

	assert.Equal(t, withPrincipal, samePrincipalOtherAddr)
	assert.NotEqual(t, withPrincipal, addrOnly)
}

func TestContextResolver_SecretChangesKey(t *testing.T) {
	raw := models.RawRequest{RemoteAddr: "203.0.113.7:54231", UserAgent: "curl/8.0"}

	keyA, _ := newResolver(t, "secret-a", &stubGeo{}).Resolve(context.Background(), raw)
	keyB, _ := newResolver(t, "secret-b", &stubGeo{}).Resolve(context.Background(), raw)

	assert.NotEqual(t, keyA, keyB)
}

func TestContextResolver_AnonymousFallback(t *testing.T) {
	resolver := newResolver(t, "epoch-secret", &stubGeo{})

	key, _ := resolver.Resolve(context.Background(), models.RawRequest{})
	assert.Equal(t, constants.AnonymousClientKey, key)
}

func TestContextResolver_GeoDefaults(t *testing.T) {
	tests := []struct {
		name string
		geo  *stubGeo
	}{
		{"lookup error", &stubGeo{err: assert.AnError}},
		{"unknown origin", &stubGeo{geo: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := newResolver(t, "epoch-secret", tt.geo)

			_, geo := resolver.Resolve(context.Background(), models.RawRequest{
				RemoteAddr: "203.0.113.7:54231",
			})

			assert.Equal(t, constants.CountryUnknown, geo.CountryCode)
			assert.Equal(t, constants.TimezoneFallback, geo.Timezone)
			assert.Equal(t, constants.DefaultWorkingHoursStart, geo.WorkingHours.StartHour)
			assert.Equal(t, constants.DefaultWorkingHoursEnd, geo.WorkingHours.EndHour)
		})
	}
}

func TestContextResolver_GeoEnrichment(t *testing.T) {
	resolver := newResolver(t, "epoch-secret", &stubGeo{
		geo: &models.GeoContext{CountryCode: "DE"},
	})

	_, geo := resolver.Resolve(context.Background(), models.RawRequest{
		RemoteAddr: "203.0.113.7:54231",
	})

	assert.Equal(t, "DE", geo.CountryCode)
	assert.Equal(t, constants.TimezoneFallback, geo.Timezone)
	assert.Equal(t, constants.DefaultWorkingHoursStart, geo.WorkingHours.StartHour)
}

func TestContextResolver_GeoCachedByCountry(t *testing.T) {
	stub := &stubGeo{geo: &models.GeoContext{
		CountryCode:  "FR",
		Timezone:     "Europe/Paris",
		WorkingHours: models.WorkingHours{StartHour: 8, EndHour: 18},
	}}
	resolver := newResolver(t, "epoch-secret", stub)

	_, first := resolver.Resolve(context.Background(), models.RawRequest{RemoteAddr: "203.0.113.7"})
	_, second := resolver.Resolve(context.Background(), models.RawRequest{RemoteAddr: "203.0.113.8"})

	assert.Equal(t, first, second)
	assert.Equal(t, "Europe/Paris", second.Timezone)
}

func TestContextResolver_SecretFetchFailure(t *testing.T) {
	_, err := application.NewContextResolver(context.Background(),
		staticSecrets{err: assert.AnError}, &stubGeo{}, time.Minute, nil)
	assert.Error(t, err)
}
