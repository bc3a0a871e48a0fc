package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/agro-portal/internal/common"
	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/news"
	"github.com/i474232898/agro-portal/internal/weather"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=text plain"`

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string  `validate:"required,url"`
	WeatherLang        string  `validate:"required"`
	DefaultLat         float64 `validate:"gte=-90,lte=90"`
	DefaultLon         float64 `validate:"gte=-180,lte=180"`
	GeocoderAPIKey     string

	// HTTPTimeout bounds every outbound call.
	HTTPTimeout time.Duration `validate:"gt=0"`

	NewsFeeds []string `validate:"min=1,dive,url"`

	RefreshInterval  time.Duration `validate:"gt=0"`
	RotationInterval time.Duration `validate:"gt=0"`

	PizarraDir        string `validate:"required"`
	PizarraNamespace  string `validate:"required,excludesall=/\\"`
	PizarraPublicBase string `validate:"required"`
	PizarraFallback   string `validate:"required"`
	PizarraMaxBytes   int64  `validate:"gt=0"`

	DatabaseDriver string `validate:"oneof=sqlite postgres"`
	DatabaseURL    string `validate:"required"`

	RedisURL       string
	SessionTTL     time.Duration `validate:"gt=0"`
	CookieSecure   bool
	ServiceRoleKey string

	AdminBootstrapEmail    string `validate:"omitempty,email"`
	AdminBootstrapPassword string `validate:"required_with=AdminBootstrapEmail"`
}

// DefaultLocation is used when a weather request omits coordinates.
func (c *AppConfig) DefaultLocation() weather.Location {
	return weather.Location{Lat: c.DefaultLat, Lon: c.DefaultLon}
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("config: no .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the config from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		LogLevel:  strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenvDefault("LOG_FORMAT", "text")),

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHERMAP_API_KEY"),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		WeatherLang:        getenvDefault("WEATHER_LANG", "es"),
		GeocoderAPIKey:     os.Getenv("GEOCODER_API_KEY"),

		PizarraDir:        getenvDefault("PIZARRA_DIR", "./data/objects"),
		PizarraNamespace:  getenvDefault("PIZARRA_NAMESPACE", "pizarra"),
		PizarraPublicBase: getenvDefault("PIZARRA_PUBLIC_BASE", "/storage"),
		PizarraFallback:   getenvDefault("PIZARRA_FALLBACK", "/pizarra2011.png"),

		DatabaseURL: getenvDefault("DATABASE_URL", "./data/agro-portal.db"),

		RedisURL:       os.Getenv("REDIS_URL"),
		ServiceRoleKey: os.Getenv("SERVICE_ROLE_KEY"),

		AdminBootstrapEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		AdminBootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
	}

	var err error
	if cfg.DefaultLat, err = getenvFloat("WEATHER_DEFAULT_LAT", -32.1731); err != nil {
		return nil, err
	}
	if cfg.DefaultLon, err = getenvFloat("WEATHER_DEFAULT_LON", -64.1147); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("RADAR_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RotationInterval, err = getenvDuration("NEWS_ROTATION_INTERVAL", 6*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = getenvBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	cfg.PizarraMaxBytes = int64(getenvInt("PIZARRA_MAX_BYTES", 5*1024*1024))

	cfg.NewsFeeds = common.SplitList(os.Getenv("NEWS_FEEDS"))
	if len(cfg.NewsFeeds) == 0 {
		cfg.NewsFeeds = append([]string(nil), news.DefaultFeeds...)
	}

	cfg.DatabaseDriver = strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverSQLite
		if common.HasAny(cfg.DatabaseURL, "postgres://", "postgresql://") {
			cfg.DatabaseDriver = DriverPostgres
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		logger.Warn("config: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
