package httpapi

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agro-portal/internal/weather"
)

func (d Deps) getWeather(c *fiber.Ctx) error {
	coords, err := bindCoordinates(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(coords); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	conditions, err := d.Weather.GetConditions(c.UserContext(), coords)
	if err != nil {
		var ue *weather.UpstreamError
		if errors.As(err, &ue) {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return err
	}
	return c.JSON(conditions)
}

// bindCoordinates reads lat/lon from a JSON body, or from the query string
// when there is no body.
func bindCoordinates(c *fiber.Ctx) (weather.Coordinates, error) {
	var coords weather.Coordinates
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&coords); err != nil {
			return coords, errors.New("invalid request body")
		}
		return coords, nil
	}

	var err error
	if coords.Lat, err = queryFloat(c, "lat"); err != nil {
		return coords, err
	}
	if coords.Lon, err = queryFloat(c, "lon"); err != nil {
		return coords, err
	}
	return coords, nil
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.New(key + " must be a number")
	}
	return &f, nil
}
