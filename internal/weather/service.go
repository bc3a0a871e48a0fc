package weather

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/upstream"
)

// Service proxies the upstream provider and returns normalized Conditions.
// It never retries; retries are the caller's responsibility.
type Service struct {
	provider Provider
	namer    LocationNamer
	defaults Location
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLocationNamer sets a fallback resolver for empty location names.
func WithLocationNamer(n LocationNamer) Option {
	return func(s *Service) { s.namer = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service. defaults is used for omitted coordinates.
func NewService(provider Provider, defaults Location, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		defaults: defaults,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve fills omitted coordinates with the configured defaults.
func (s *Service) Resolve(c Coordinates) Location {
	loc := s.defaults
	if c.Lat != nil {
		loc.Lat = *c.Lat
	}
	if c.Lon != nil {
		loc.Lon = *c.Lon
	}
	return loc
}

// GetConditions fetches current conditions and the 24h forecast concurrently.
// The current observation is required; a failed forecast degrades to a zero
// forecast. All failures are reported as *UpstreamError.
func (s *Service) GetConditions(ctx context.Context, c Coordinates) (Conditions, error) {
	if s.provider == nil {
		return Conditions{}, &UpstreamError{Op: "configure", Err: errors.New("no weather provider configured")}
	}

	loc := s.Resolve(c)
	logger.Debug("weather: fetching conditions for %s via %s", loc.Key(), s.provider.Name())

	var (
		wg         sync.WaitGroup
		current    CurrentReading
		currentErr error
		samples    []ForecastSample
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = s.provider.Current(ctx, loc)
	}()
	go func() {
		defer wg.Done()
		var err error
		samples, err = s.provider.Forecast(ctx, loc, ForecastWindow)
		if err != nil {
			// Forecast is best effort; the panel still renders current conditions.
			logger.Warn("weather: forecast failed for %s: %v", loc.Key(), err)
			samples = nil
		}
	}()
	wg.Wait()

	if currentErr != nil {
		return Conditions{}, wrapUpstream("current", currentErr)
	}

	if strings.TrimSpace(current.LocationName) == "" && s.namer != nil {
		name, err := s.namer.NameFor(ctx, loc)
		if err != nil {
			logger.Warn("weather: reverse geocoding failed for %s: %v", loc.Key(), err)
		} else {
			current.LocationName = name
		}
	}

	return BuildConditions(current, samples, s.now()), nil
}

func wrapUpstream(op string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return &UpstreamError{Op: "credentials", Err: err}
	}
	return &UpstreamError{Op: op, StatusCode: upstream.StatusCode(err), Err: err}
}
