package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agro-portal/internal/assets"
	"github.com/i474232898/agro-portal/internal/auth"
	"github.com/i474232898/agro-portal/internal/dashboard"
	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/news"
	"github.com/i474232898/agro-portal/internal/weather"
)

var validate = validator.New()

type WeatherService interface {
	GetConditions(ctx context.Context, c weather.Coordinates) (weather.Conditions, error)
}

type NewsService interface {
	GetNews(ctx context.Context) []news.Item
}

// Deps are the components served over HTTP.
type Deps struct {
	Weather WeatherService
	News    NewsService
	Assets  *assets.Store
	Gate    *auth.Gate
	View    *dashboard.View

	// ServiceRoleKey guards admin provisioning; empty disables the endpoint.
	ServiceRoleKey string

	// SecureCookies marks the session cookie Secure even when TLS ends at a
	// proxy. Requests that arrive over TLS always get a Secure cookie.
	SecureCookies bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/storage/:namespace/:name", d.serveObject)

	v1 := app.Group("/api/v1", d.resolvePrincipal)

	v1.Get("/weather", d.getWeather)
	v1.Post("/weather", d.getWeather)

	v1.Get("/news", d.getNews)
	v1.Post("/news", d.getNews)

	v1.Get("/pizarra", d.getPizarra)
	v1.Post("/pizarra", requireAdmin, d.uploadPizarra)

	a := v1.Group("/auth")
	a.Post("/sign-in", d.signIn)
	a.Post("/sign-out", d.signOut)
	a.Get("/session", d.currentSession)
	a.Post("/admins", d.provisionAdmin)

	if d.View != nil {
		r := v1.Group("/radar")
		r.Get("/", d.radarState)
		r.Post("/refresh", d.radarRefresh)
		r.Post("/news/next", d.radarNext)
		r.Post("/news/prev", d.radarPrev)
	}
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("http: %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
