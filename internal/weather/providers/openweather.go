package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/agro-portal/internal/upstream"
	"github.com/i474232898/agro-portal/internal/weather"
)

// DefaultOpenWeatherBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	lang    string
	client  *upstream.Client
}

// NewOpenWeatherProvider creates a provider. An empty apiKey is accepted here
// so the service can start; every call then fails with weather.ErrMissingAPIKey.
func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL, lang string, timeout time.Duration) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	if lang == "" {
		lang = "es"
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		lang:    lang,
		// No retries: a failed call is surfaced and the caller refreshes.
		client: upstream.New("openweathermap", client, upstream.Options{
			Timeout: timeout,
			Backoff: upstream.BackoffConfig{MaxRetries: 0},
		}),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) query(loc weather.Location, extra url.Values) string {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lang", p.lang)
	for k, v := range extra {
		values[k] = v
	}
	return values.Encode()
}

type owmCurrent struct {
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) Current(ctx context.Context, loc weather.Location) (weather.CurrentReading, error) {
	if p.apiKey == "" {
		return weather.CurrentReading{}, weather.ErrMissingAPIKey
	}

	body, err := p.client.Get(ctx, fmt.Sprintf("%s/weather?%s", p.baseURL, p.query(loc, nil)), nil)
	if err != nil {
		return weather.CurrentReading{}, err
	}

	var payload owmCurrent
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.CurrentReading{}, fmt.Errorf("decode openweather current: %w", err)
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	reading := weather.CurrentReading{
		ProviderName: p.name,
		Timestamp:    ts,
		LocationName: payload.Name,
		TemperatureC: payload.Main.Temp,
		FeelsLikeC:   payload.Main.FeelsLike,
		HumidityPct:  payload.Main.Humidity,
		PressureHpa:  payload.Main.Pressure,
		WindSpeedMS:  payload.Wind.Speed,
		WindDegrees:  payload.Wind.Deg,
	}
	if len(payload.Weather) > 0 {
		reading.ConditionCode = payload.Weather[0].ID
		reading.Description = payload.Weather[0].Description
	}
	return reading, nil
}

type owmForecast struct {
	List []struct {
		Dt   int64   `json:"dt"`
		Pop  float64 `json:"pop"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, loc weather.Location, samples int) ([]weather.ForecastSample, error) {
	if p.apiKey == "" {
		return nil, weather.ErrMissingAPIKey
	}
	if samples <= 0 {
		samples = weather.ForecastWindow
	}

	q := p.query(loc, url.Values{"cnt": []string{strconv.Itoa(samples)}})
	body, err := p.client.Get(ctx, fmt.Sprintf("%s/forecast?%s", p.baseURL, q), nil)
	if err != nil {
		return nil, err
	}

	var payload owmForecast
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode openweather forecast: %w", err)
	}

	out := make([]weather.ForecastSample, 0, len(payload.List))
	for _, item := range payload.List {
		out = append(out, weather.ForecastSample{
			Time:              time.Unix(item.Dt, 0).UTC(),
			PrecipProbability: item.Pop,
			RainMm3h:          item.Rain.ThreeH,
		})
	}
	return out, nil
}
