package httpapi

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agro-portal/internal/assets"
	"github.com/i474232898/agro-portal/internal/logger"
)

func (d Deps) getPizarra(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"url":      d.Assets.Current(c.UserContext()),
		"fallback": d.Assets.FallbackPath(),
	})
}

// uploadPizarra replaces the price-board image. The declared type comes from
// the "type" form field, else from the file part's Content-Type.
func (d Deps) uploadPizarra(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}

	declared := c.FormValue("type")
	if declared == "" {
		declared = fh.Header.Get(fiber.HeaderContentType)
	}
	if declared == "" {
		if i := strings.LastIndex(fh.Filename, "."); i >= 0 {
			declared = fh.Filename[i+1:]
		}
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read uploaded file")
	}

	url, err := d.Assets.Upload(c.UserContext(), data, declared)
	if err != nil {
		return uploadError(err)
	}

	logger.Info("http: %s replaced the pizarra", principalFrom(c).Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

func uploadError(err error) error {
	var se *assets.StorageError
	switch {
	case errors.Is(err, assets.ErrInvalidType):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, assets.ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &se):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}

// serveObject streams a stored object. Only the store's own namespace is
// reachable.
func (d Deps) serveObject(c *fiber.Ctx) error {
	if c.Params("namespace") != d.Assets.Namespace() {
		return fiber.ErrNotFound
	}

	data, obj, err := d.Assets.Open(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, assets.ErrObjectNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	// Names are unique per upload.
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(data)
}
