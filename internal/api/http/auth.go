package httpapi

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agro-portal/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type provisionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type principalView struct {
	auth.Principal
	IsAdmin bool `json:"isAdmin"`
}

func viewOf(p auth.Principal) principalView {
	return principalView{Principal: p, IsAdmin: p.IsAdmin()}
}

func bindJSON(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func authError(err error) error {
	var pe *auth.ProviderError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.As(err, &pe):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

func (d Deps) secureCookie(c *fiber.Ctx) bool {
	return d.SecureCookies || c.Secure()
}

func (d Deps) signIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	sess, p, err := d.Gate.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return authError(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   d.secureCookie(c),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	return c.JSON(fiber.Map{
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"principal": viewOf(p),
	})
}

func (d Deps) signOut(c *fiber.Ctx) error {
	if err := d.Gate.SignOut(c.UserContext(), sessionToken(c)); err != nil {
		return authError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   d.secureCookie(c),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	return c.JSON(fiber.Map{"principal": viewOf(auth.Anonymous())})
}

func (d Deps) currentSession(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"principal": viewOf(principalFrom(c))})
}

// provisionAdmin creates or promotes an admin. It is authorized by the
// service key, not by a user session.
func (d Deps) provisionAdmin(c *fiber.Ctx) error {
	if d.ServiceRoleKey == "" {
		return fiber.ErrNotFound
	}
	key := c.Get("X-Service-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(d.ServiceRoleKey)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid service key")
	}

	var req provisionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, err := d.Gate.ProvisionAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return authError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"userId": user.ID,
		"email":  user.Email,
		"role":   auth.RoleAdmin,
	})
}
