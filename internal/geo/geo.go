// Package geo holds the distance and link helpers used by the hospital finder.
package geo

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"health-assistant/internal/domain"
)

const earthRadiusMeters = 6371e3

var ErrNoPhone = errors.New("Phone number not available for this hospital")

// Distance returns the great-circle distance in metres between a and b.
func Distance(a, b domain.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func FormatDistance(meters *float64) string {
	if meters == nil {
		return "Unknown distance"
	}
	if *meters < 1000 {
		return fmt.Sprintf("%d m away", int(math.Round(*meters)))
	}
	return fmt.Sprintf("%.2f km away", *meters/1000)
}

// DirectionsURL links to driving directions to dest, starting from origin
// when it is known.
func DirectionsURL(dest domain.Coordinate, origin *domain.Coordinate) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", formatPair(dest))
	if origin != nil {
		q.Set("origin", formatPair(*origin))
	}
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

func OpenStreetMapURL(c domain.Coordinate) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%s&mlon=%s&zoom=15",
		formatCoord(c.Lat), formatCoord(c.Lng))
}

func CallURI(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrNoPhone
	}
	return "tel:" + phone, nil
}

func formatPair(c domain.Coordinate) string {
	return formatCoord(c.Lat) + "," + formatCoord(c.Lng)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
