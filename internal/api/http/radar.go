package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func (d Deps) radarState(c *fiber.Ctx) error {
	return c.JSON(d.View.State())
}

// radarRefresh always answers 200; a failed weather fetch is reported in the
// notice, next to whatever did refresh.
func (d Deps) radarRefresh(c *fiber.Ctx) error {
	notice := d.View.Refresh(c.UserContext())
	return c.JSON(fiber.Map{
		"notice": notice,
		"state":  d.View.State(),
	})
}

// radarNext and radarPrev move a client-held carousel position. The caller
// sends its current position as ?index=N (default: the shared rotation) and
// the shared rotation is never changed, so clients do not move each other.
func (d Deps) radarNext(c *fiber.Ctx) error {
	return d.radarStep(c, 1)
}

func (d Deps) radarPrev(c *fiber.Ctx) error {
	return d.radarStep(c, -1)
}

func (d Deps) radarStep(c *fiber.Ctx, delta int) error {
	index := d.View.State().NewsIndex
	if raw := c.Query("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
		}
		index = n
	}
	return c.JSON(d.View.StateFrom(index, delta))
}
