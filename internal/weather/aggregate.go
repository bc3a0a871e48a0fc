package weather

import "time"

// ForecastWindow is the number of 3-hour samples covering 24 hours.
const ForecastWindow = 8

// SummarizeForecast reduces the first ForecastWindow samples to a rain
// probability (max pop, percent) and a precipitation total (sum of 3h rain,
// rounded to 0.1 mm). Both are non-negative.
func SummarizeForecast(samples []ForecastSample) (rainProbabilityPct int, precipitationMm float64) {
	if len(samples) > ForecastWindow {
		samples = samples[:ForecastWindow]
	}

	var maxPop, sumRain float64
	for _, s := range samples {
		if s.PrecipProbability > maxPop {
			maxPop = s.PrecipProbability
		}
		if s.RainMm3h > 0 {
			sumRain += s.RainMm3h
		}
	}

	return clampPct(int(roundHalfUp(maxPop * 100))), roundTenth(sumRain)
}

// BuildConditions normalizes a provider reading and forecast samples into the
// fixed Conditions shape.
func BuildConditions(r CurrentReading, samples []ForecastSample, now time.Time) Conditions {
	prob, precip := SummarizeForecast(samples)

	humidity := clampPct(int(roundHalfUp(r.HumidityPct)))
	wind := roundHalfUp(KphFromMS(r.WindSpeedMS))
	if wind < 0 {
		wind = 0
	}

	return Conditions{
		Current: WeatherSnapshot{
			TemperatureC: roundHalfUp(r.TemperatureC),
			FeelsLikeC:   roundHalfUp(r.FeelsLikeC),
			HumidityPct:  humidity,
			Condition:    MapCondition(r.ConditionCode),
			Description:  r.Description,
		},
		Forecast: ForecastSnapshot{
			RainProbabilityPct: prob,
			PrecipitationMm:    precip,
			WindSpeedKph:       wind,
			WindDirection:      WindDirectionFromDegrees(r.WindDegrees),
			PressureHPa:        int(roundHalfUp(r.PressureHpa)),
		},
		LocationName: r.LocationName,
		Timestamp:    now.UTC(),
	}
}
