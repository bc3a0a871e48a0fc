package weather

import (
	"context"
	"time"
)

// CurrentReading is a provider's observation in provider units (metric, m/s,
// degrees) before normalization.
type CurrentReading struct {
	ProviderName string
	Timestamp    time.Time
	LocationName string

	TemperatureC  float64
	FeelsLikeC    float64
	HumidityPct   float64
	PressureHpa   float64
	WindSpeedMS   float64
	WindDegrees   float64
	ConditionCode int
	Description   string
}

// ForecastSample is one 3-hour step of a forecast series.
type ForecastSample struct {
	Time              time.Time
	PrecipProbability float64 // 0..1
	RainMm3h          float64
}

// Provider abstracts the upstream weather service.
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Location) (CurrentReading, error)
	Forecast(ctx context.Context, loc Location, samples int) ([]ForecastSample, error)
}

// LocationNamer resolves a display name for a position when the provider does
// not supply one.
type LocationNamer interface {
	NameFor(ctx context.Context, loc Location) (string, error)
}
