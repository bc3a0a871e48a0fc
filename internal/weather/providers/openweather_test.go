package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agro-portal/internal/weather"
)

const currentJSON = `{
  "dt": 1767000000,
  "name": "Río Tercero",
  "main": {"temp": 24.4, "feels_like": 26.1, "humidity": 58, "pressure": 1015},
  "wind": {"speed": 5, "deg": 130},
  "weather": [{"id": 802, "description": "nubes dispersas"}]
}`

const forecastJSON = `{"list": [
  {"dt": 1767000000, "pop": 0.2},
  {"dt": 1767010800, "pop": 0.35, "rain": {"3h": 1.2}},
  {"dt": 1767021600, "pop": 0.1, "rain": {"3h": 0.3}}
]}`

func newOpenWeatherServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "es", q.Get("lang"))
		assert.Equal(t, "-32.1731", q.Get("lat"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		switch r.URL.Path {
		case "/weather":
			_, _ = w.Write([]byte(currentJSON))
		case "/forecast":
			assert.Equal(t, "8", q.Get("cnt"))
			_, _ = w.Write([]byte(forecastJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOpenWeatherEndToEnd(t *testing.T) {
	srv := newOpenWeatherServer(t, http.StatusOK)
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", srv.URL, "es", time.Second)
	svc := weather.NewService(p, weather.Location{Lat: -32.1731, Lon: -64.1147})

	c, err := svc.GetConditions(context.Background(), weather.Coordinates{})
	require.NoError(t, err)

	assert.Equal(t, "Río Tercero", c.LocationName)
	assert.Equal(t, 24.0, c.Current.TemperatureC)
	assert.Equal(t, 26.0, c.Current.FeelsLikeC)
	assert.Equal(t, 58, c.Current.HumidityPct)
	assert.Equal(t, weather.ConditionPartlyCloudy, c.Current.Condition)
	assert.Equal(t, 35, c.Forecast.RainProbabilityPct)
	assert.InDelta(t, 1.5, c.Forecast.PrecipitationMm, 1e-9)
	assert.Equal(t, 18.0, c.Forecast.WindSpeedKph)
	assert.Equal(t, weather.WindSE, c.Forecast.WindDirection)
	assert.Equal(t, 1015, c.Forecast.PressureHPa)
}

func TestOpenWeatherNonSuccessIsUpstreamError(t *testing.T) {
	srv := newOpenWeatherServer(t, http.StatusUnauthorized)
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", srv.URL, "es", time.Second)
	svc := weather.NewService(p, weather.Location{Lat: -32.1731, Lon: -64.1147})

	_, err := svc.GetConditions(context.Background(), weather.Coordinates{})
	var ue *weather.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
}

func TestOpenWeatherMissingKeyMakesNoCalls(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "", srv.URL, "", time.Second)
	_, err := p.Current(context.Background(), weather.Location{})
	assert.ErrorIs(t, err, weather.ErrMissingAPIKey)
	_, err = p.Forecast(context.Background(), weather.Location{}, 8)
	assert.ErrorIs(t, err, weather.ErrMissingAPIKey)
	assert.False(t, called)
}
