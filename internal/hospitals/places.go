package hospitals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"health-assistant/internal/domain"
	"health-assistant/internal/geo"
)

const DefaultPlacesURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Rating   *float64 `json:"rating"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// PlacesSearcher uses the Google Places Nearby Search API.
type PlacesSearcher struct {
	client *resty.Client
	url    string
	apiKey string
}

func NewPlacesSearcher(apiKey, url string, timeout time.Duration) (*PlacesSearcher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("hospitals: places api key must not be empty")
	}
	if strings.TrimSpace(url) == "" {
		url = DefaultPlacesURL
	}
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &PlacesSearcher{
		client: resty.New().SetTimeout(timeout),
		url:    url,
		apiKey: apiKey,
	}, nil
}

func (p *PlacesSearcher) Search(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Hospital, error) {
	var out placesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": strconv.FormatFloat(center.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(center.Lng, 'f', -1, 64),
			"radius":   strconv.FormatFloat(radiusMeters, 'f', 0, 64),
			"type":     "hospital",
			"key":      p.apiKey,
		}).
		SetResult(&out).
		Get(p.url)
	if err != nil {
		return nil, fmt.Errorf("places: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("places: HTTP %d", resp.StatusCode())
	}
	switch out.Status {
	case "OK", "ZERO_RESULTS":
	default:
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.Status
		}
		return nil, fmt.Errorf("places: %s", msg)
	}

	hs := make([]domain.Hospital, 0, len(out.Results))
	for _, r := range out.Results {
		pos := domain.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		distance := geo.Distance(center, pos)
		hs = append(hs, domain.Hospital{
			ID:       r.PlaceID,
			Name:     r.Name,
			Location: pos,
			Address:  r.Vicinity,
			Distance: &distance,
			Rating:   r.Rating,
		})
	}
	return hs, nil
}
