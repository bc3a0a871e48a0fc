package weather

import "math"

var compass = [8]WindDirection{WindN, WindNE, WindE, WindSE, WindS, WindSW, WindW, WindNW}

// MapCondition maps an OpenWeatherMap condition id to a Condition.
// Unknown or missing codes fall back to cloudy.
func MapCondition(code int) Condition {
	switch {
	case code >= 200 && code < 600:
		return ConditionRain
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionCloudy
	case code == 800:
		return ConditionSunny
	case code > 800:
		return ConditionPartlyCloudy
	default:
		return ConditionCloudy
	}
}

// WindDirectionFromDegrees converts a bearing to the nearest 8-point heading
// using round(deg/45) mod 8. Bearings outside [0,360) are normalized.
func WindDirectionFromDegrees(deg float64) WindDirection {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return WindN
	}
	idx := int(roundHalfUp(deg/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return compass[idx]
}

// KphFromMS converts m/s to km/h.
func KphFromMS(v float64) float64 {
	return v * 3.6
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func roundTenth(v float64) float64 {
	return roundHalfUp(v*10) / 10
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
