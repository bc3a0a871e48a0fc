package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	httpapi "github.com/i474232898/agro-portal/internal/api/http"
	"github.com/i474232898/agro-portal/internal/assets"
	"github.com/i474232898/agro-portal/internal/auth"
	"github.com/i474232898/agro-portal/internal/config"
	"github.com/i474232898/agro-portal/internal/dashboard"
	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/news"
	"github.com/i474232898/agro-portal/internal/scheduler"
	"github.com/i474232898/agro-portal/internal/session"
	"github.com/i474232898/agro-portal/internal/weather"
	"github.com/i474232898/agro-portal/internal/weather/providers"
)

const serviceName = "agro-portal"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.OpenWeatherAPIKey == "" {
		logger.Error("OPENWEATHERMAP_API_KEY is not set; every weather request will fail with an upstream error")
	}

	// Shared HTTP client for outbound calls; per-call timeouts live in upstream.Client.
	httpClient := &http.Client{}

	// Weather proxy.
	var weatherOpts []weather.Option
	if cfg.GeocoderAPIKey != "" {
		weatherOpts = append(weatherOpts, weather.WithLocationNamer(providers.NewReverseGeocoder(cfg.GeocoderAPIKey)))
	}
	weatherSvc := weather.NewService(
		providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.WeatherLang, cfg.HTTPTimeout),
		cfg.DefaultLocation(),
		weatherOpts...,
	)

	// News aggregator.
	newsAgg := news.NewAggregator(cfg.NewsFeeds, news.NewHTTPFetcher(httpClient, cfg.HTTPTimeout))

	// Redis backs sessions and the upload lock when configured.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = connectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
	}

	// Asset store.
	var locker assets.Locker
	if rdb != nil {
		locker = assets.NewRedisLocker(rdb, 30*time.Second)
	}
	assetStore := assets.NewStore(assets.NewAferoBackend(afero.NewOsFs(), cfg.PizarraDir), locker, assets.Config{
		Namespace:    cfg.PizarraNamespace,
		PublicBase:   cfg.PizarraPublicBase,
		FallbackPath: cfg.PizarraFallback,
		MaxBytes:     cfg.PizarraMaxBytes,
	})

	// Identity directory and sessions.
	dir, err := openDirectory(cfg)
	if err != nil {
		logger.Fatal("failed to open identity directory: %v", err)
	}
	defer dir.Close()

	var sessions session.Store
	var sweeper *scheduler.Scheduler
	if rdb != nil {
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		mem := session.NewMemoryStore(cfg.SessionTTL)
		sessions = mem
		sweeper = scheduler.New(scheduler.Job{
			Name:     "session-sweep",
			Interval: time.Hour,
			Run: func() {
				if n := mem.Sweep(); n > 0 {
					logger.Debug("session: swept %d expired session(s)", n)
				}
			},
		})
		if err := sweeper.Start(); err != nil {
			logger.Fatal("failed to start session sweeper: %v", err)
		}
		defer sweeper.Stop()
	}
	gate := auth.NewGate(dir, sessions)
	gate.Watch(func(p auth.Principal) {
		logger.Debug("auth: principal changed: authenticated=%t role=%s", p.Authenticated, p.Role)
	})

	if cfg.AdminBootstrapEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := gate.ProvisionAdmin(ctx, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword); err != nil {
			logger.Error("admin bootstrap failed: %v", err)
		}
		cancel()
	}

	// Radar view with its refresh and rotation timers.
	view := dashboard.NewView(weatherSvc, newsAgg, assetStore, dashboard.Config{
		RefreshInterval:  cfg.RefreshInterval,
		RotationInterval: cfg.RotationInterval,
		FetchTimeout:     3 * cfg.HTTPTimeout,
	})
	if err := view.Start(); err != nil {
		logger.Fatal("failed to start dashboard: %v", err)
	}
	defer view.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             int(cfg.PizarraMaxBytes) + 1<<20,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} [${locals:requestid}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Weather:        weatherSvc,
		News:           newsAgg,
		Assets:         assetStore,
		Gate:           gate,
		View:           view,
		ServiceRoleKey: cfg.ServiceRoleKey,
		SecureCookies:  cfg.CookieSecure,
	})

	// Start server with graceful shutdown
	go func() {
		logger.Info("%s listening on :%s", serviceName, cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown: %v", err)
	}
}

type directory interface {
	auth.Directory
	io.Closer
}

func openDirectory(cfg *config.AppConfig) (directory, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		d, err := auth.NewPostgresDirectory(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		d, err := auth.NewSQLiteDirectory(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func connectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connected")
	return client, nil
}
