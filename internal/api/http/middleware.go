package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agro-portal/internal/auth"
)

const (
	sessionCookie = "session"
	principalKey  = "principal"
)

// sessionToken reads a bearer token, falling back to the session cookie.
func sessionToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(sessionCookie)
}

// resolvePrincipal resolves the caller once per request and stores the
// Principal in the request locals for the handlers.
func (d Deps) resolvePrincipal(c *fiber.Ctx) error {
	p := auth.Anonymous()
	if d.Gate != nil {
		p = d.Gate.Resolve(c.UserContext(), sessionToken(c))
	}
	c.Locals(principalKey, p)
	return c.Next()
}

func principalFrom(c *fiber.Ctx) auth.Principal {
	if p, ok := c.Locals(principalKey).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous()
}

func requireAdmin(c *fiber.Ctx) error {
	p := principalFrom(c)
	if !p.Authenticated {
		return fiber.NewError(fiber.StatusUnauthorized, auth.ErrUnauthenticated.Error())
	}
	if !auth.CanWriteAssets(p) {
		return fiber.NewError(fiber.StatusForbidden, auth.ErrForbidden.Error())
	}
	return c.Next()
}
