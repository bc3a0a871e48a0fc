package weather

import (
	"fmt"
	"time"
)

// Condition is the normalized sky condition shown on the radar panel.
type Condition string

const (
	ConditionSunny        Condition = "sunny"
	ConditionCloudy       Condition = "cloudy"
	ConditionPartlyCloudy Condition = "partly-cloudy"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
)

// WindDirection is an 8-point compass heading.
type WindDirection string

const (
	WindN  WindDirection = "N"
	WindNE WindDirection = "NE"
	WindE  WindDirection = "E"
	WindSE WindDirection = "SE"
	WindS  WindDirection = "S"
	WindSW WindDirection = "SW"
	WindW  WindDirection = "W"
	WindNW WindDirection = "NW"
)

// Coordinates is the caller-supplied position. Nil fields are filled with the
// configured defaults.
type Coordinates struct {
	Lat *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon *float64 `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// Location is a fully resolved position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// WeatherSnapshot holds current conditions. It is rebuilt on every fetch.
type WeatherSnapshot struct {
	TemperatureC float64   `json:"temperatureC"`
	FeelsLikeC   float64   `json:"feelsLikeC"`
	HumidityPct  int       `json:"humidityPct"`
	Condition    Condition `json:"condition"`
	Description  string    `json:"description"`
}

// ForecastSnapshot summarizes the next 24 hours (8 three-hour samples) plus
// the current wind and pressure.
type ForecastSnapshot struct {
	RainProbabilityPct int           `json:"rainProbabilityPct"`
	PrecipitationMm    float64       `json:"precipitationMm"`
	WindSpeedKph       float64       `json:"windSpeedKph"`
	WindDirection      WindDirection `json:"windDirection"`
	PressureHPa        int           `json:"pressureHPa"`
}

// Conditions is the fixed-shape result returned by the proxy.
type Conditions struct {
	Current      WeatherSnapshot  `json:"weather"`
	Forecast     ForecastSnapshot `json:"forecast"`
	LocationName string           `json:"location"`
	Timestamp    time.Time        `json:"timestamp"` // always UTC
}
