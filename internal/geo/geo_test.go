package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"health-assistant/internal/domain"
)

var (
	mumbai = domain.Coordinate{Lat: 19.0760, Lng: 72.8777}
	pune   = domain.Coordinate{Lat: 18.5204, Lng: 73.8567}
)

func TestDistance_ZeroAndSymmetric(t *testing.T) {
	points := []domain.Coordinate{mumbai, pune, {Lat: -33.8688, Lng: 151.2093}, {}, {Lat: 89.9, Lng: -179.9}}
	for _, a := range points {
		require.Zero(t, Distance(a, a))
		for _, b := range points {
			require.Equal(t, Distance(a, b), Distance(b, a))
		}
	}
}

func TestDistance_KnownValue(t *testing.T) {
	// Mumbai to Pune is roughly 120 km as the crow flies.
	require.InDelta(t, 120_000, Distance(mumbai, pune), 2_000)
	// One degree of latitude is about 111.2 km.
	require.InDelta(t, 111_195, Distance(domain.Coordinate{}, domain.Coordinate{Lat: 1}), 1)
}

func TestFormatDistance(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	require.Equal(t, "Unknown distance", FormatDistance(nil))
	require.Equal(t, "0 m away", FormatDistance(f(0)))
	require.Equal(t, "500 m away", FormatDistance(f(499.6)))
	require.Equal(t, "1000 m away", FormatDistance(f(999.7)))
	require.Equal(t, "1.00 km away", FormatDistance(f(1000)))
	require.Equal(t, "12.35 km away", FormatDistance(f(12346)))
}

func TestDirectionsURL(t *testing.T) {
	require.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=18.5204%2C73.8567",
		DirectionsURL(pune, nil))
	require.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=18.5204%2C73.8567&origin=19.076%2C72.8777",
		DirectionsURL(pune, &mumbai))
}

func TestOpenStreetMapURL(t *testing.T) {
	require.Equal(t, "https://www.openstreetmap.org/?mlat=18.5204&mlon=73.8567&zoom=15", OpenStreetMapURL(pune))
}

func TestCallURI(t *testing.T) {
	uri, err := CallURI(" +91 22 1234 5678 ")
	require.NoError(t, err)
	require.Equal(t, "tel:+91 22 1234 5678", uri)

	_, err = CallURI("")
	require.ErrorIs(t, err, ErrNoPhone)
}
