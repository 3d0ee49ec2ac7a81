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
	"health-assistant/internal/logging"
)

const DefaultAttemptTimeout = 20 * time.Second

var DefaultOverpassMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
}

var ErrAllMirrorsFailed = errors.New("All Overpass API servers failed. Please try again later.")

type overpassResponse struct {
	Remark   string            `json:"remark"`
	Error    string            `json:"error"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OverpassSearcher queries OpenStreetMap through a list of Overpass mirrors,
// trying each in turn until one answers.
type OverpassSearcher struct {
	client         *resty.Client
	mirrors        []string
	attemptTimeout time.Duration
}

type OverpassOption func(*OverpassSearcher)

func WithMirrors(urls ...string) OverpassOption {
	return func(o *OverpassSearcher) {
		cleaned := make([]string, 0, len(urls))
		for _, u := range urls {
			if u = strings.TrimSpace(u); u != "" {
				cleaned = append(cleaned, u)
			}
		}
		if len(cleaned) > 0 {
			o.mirrors = cleaned
		}
	}
}

func WithAttemptTimeout(d time.Duration) OverpassOption {
	return func(o *OverpassSearcher) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

func WithOverpassClient(c *resty.Client) OverpassOption {
	return func(o *OverpassSearcher) {
		if c != nil {
			o.client = c
		}
	}
}

func NewOverpassSearcher(opts ...OverpassOption) *OverpassSearcher {
	o := &OverpassSearcher{
		client:         resty.New(),
		mirrors:        append([]string(nil), DefaultOverpassMirrors...),
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func overpassQuery(c domain.Coordinate, radiusMeters float64) string {
	around := fmt.Sprintf("(around:%s,%s,%s)",
		strconv.FormatFloat(radiusMeters, 'f', -1, 64),
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lng, 'f', -1, 64))

	var b strings.Builder
	b.WriteString("[out:json][timeout:15];\n(\n")
	for _, filter := range []string{
		`["amenity"="hospital"]`,
		`["amenity"="clinic"]`,
		`["healthcare"="hospital"]`,
		`["healthcare"="clinic"]`,
		`["healthcare"="doctor"]`,
	} {
		b.WriteString("  node" + filter + around + ";\n")
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}

// Search tries every mirror sequentially. The error of the last failing
// mirror is returned when none succeeds.
func (o *OverpassSearcher) Search(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Hospital, error) {
	query := overpassQuery(center, radiusMeters)
	logger := logging.Ctx(ctx)

	lastErr := ErrAllMirrorsFailed
	for _, mirror := range o.mirrors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := o.attempt(ctx, mirror, query)
		if err != nil {
			logger.Warn().Err(err).Str("mirror", mirror).Msg("overpass mirror failed")
			lastErr = err
			continue
		}
		return normalizeOverpass(center, data.Elements), nil
	}
	return nil, lastErr
}

func (o *OverpassSearcher) attempt(ctx context.Context, mirror, query string) (*overpassResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	var out overpassResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": query}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(mirror)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimPrefix(resp.Status(), strconv.Itoa(resp.StatusCode())+" "))
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if strings.HasPrefix(strings.TrimSpace(out.Remark), "runtime error") {
		return nil, errors.New(out.Remark)
	}
	return &out, nil
}

func normalizeOverpass(origin domain.Coordinate, elements []overpassElement) []domain.Hospital {
	out := make([]domain.Hospital, 0, len(elements))
	for i, el := range elements {
		pos, ok := el.position()
		if !ok {
			continue
		}
		tags := el.Tags
		if tags == nil {
			tags = map[string]string{}
		}

		id := "osm-" + strconv.Itoa(i)
		if el.ID != 0 {
			id = strconv.FormatInt(el.ID, 10)
		}
		name := firstNonEmpty(tags["name"], tags["name:en"], fmt.Sprintf("Hospital %d", i+1))
		address := firstNonEmpty(
			tags["addr:full"],
			strings.TrimSpace(tags["addr:street"]+" "+tags["addr:city"]),
			tags["addr:housenumber"],
		)
		distance := geo.Distance(origin, pos)

		out = append(out, domain.Hospital{
			ID:       id,
			Name:     name,
			Location: pos,
			Address:  address,
			Phone:    firstNonEmpty(tags["contact:phone"], tags["phone"]),
			Distance: &distance,
		})
	}
	return out
}

func (el overpassElement) position() (domain.Coordinate, bool) {
	if el.Lat != nil && el.Lon != nil {
		return domain.Coordinate{Lat: *el.Lat, Lng: *el.Lon}, true
	}
	if el.Center != nil {
		return domain.Coordinate{Lat: el.Center.Lat, Lng: el.Center.Lon}, true
	}
	return domain.Coordinate{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
