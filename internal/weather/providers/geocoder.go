package providers

import (
	"context"
	"errors"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/agro-portal/internal/weather"
)

var geocoderKeyMu sync.Mutex

// ReverseGeocoder resolves a display name for coordinates with the Google
// geocoding API. It implements weather.LocationNamer.
type ReverseGeocoder struct {
	apiKey string
}

func NewReverseGeocoder(apiKey string) *ReverseGeocoder {
	return &ReverseGeocoder{apiKey: apiKey}
}

func (g *ReverseGeocoder) NameFor(ctx context.Context, loc weather.Location) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("geocoder api key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The geocoder package keeps its key in a package variable.
	geocoderKeyMu.Lock()
	geocoder.ApiKey = g.apiKey
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  loc.Lat,
		Longitude: loc.Lon,
	})
	geocoderKeyMu.Unlock()
	if err != nil {
		return "", err
	}

	for _, a := range addresses {
		if a.City != "" {
			return a.City, nil
		}
	}
	if len(addresses) > 0 && addresses[0].FormattedAddress != "" {
		return addresses[0].FormattedAddress, nil
	}
	return "", errors.New("geocoder returned no address")
}
