package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (d Deps) getNews(c *fiber.Ctx) error {
	items := d.News.GetNews(c.UserContext())
	return c.JSON(fiber.Map{
		"noticias":  items,
		"timestamp": time.Now().UTC(),
	})
}
