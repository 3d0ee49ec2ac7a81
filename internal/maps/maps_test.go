package maps

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
)

func sampleResult() hospitals.Result {
	d1, d2 := 850.0, 2400.0
	return hospitals.Result{
		Origin: domain.Coordinate{Lat: 19.0, Lng: 72.8},
		Hospitals: []domain.Hospital{
			{ID: "1", Name: "City Hospital", Location: domain.Coordinate{Lat: 19.01, Lng: 72.81}, Address: "MG Road", Phone: "+91 22 1234 5678", Distance: &d1},
			{ID: "2", Name: "North Clinic", Location: domain.Coordinate{Lat: 19.02, Lng: 72.79}, Distance: &d2},
		},
	}
}

func TestMarkers(t *testing.T) {
	ms := Markers(sampleResult())
	require.Len(t, ms, 3)
	require.Equal(t, KindOrigin, ms[0].Kind)
	require.Equal(t, "City Hospital", ms[1].Title)
	require.Equal(t, "MG Road · 850 m away", ms[1].Subtitle)
	require.Equal(t, "2.40 km away", ms[2].Subtitle)
	require.Contains(t, ms[1].Link, "origin=19%2C72.8")
	require.Equal(t, "tel:+91 22 1234 5678", ms[1].CallURI)
	require.Empty(t, ms[2].CallURI)
}

func TestGeoJSONRenderer(t *testing.T) {
	var r MarkerRenderer = NewGeoJSONRenderer()
	require.NoError(t, r.RenderMarkers(Markers(sampleResult())))

	g := r.(*GeoJSONRenderer)
	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var doc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 3)
	require.Equal(t, "Point", doc.Features[1].Geometry.Type)
	require.Equal(t, []float64{72.81, 19.01}, doc.Features[1].Geometry.Coordinates)
	require.Equal(t, "hospital", doc.Features[1].Properties["kind"])
	require.Equal(t, "tel:+91 22 1234 5678", doc.Features[1].Properties["call"])
	require.NotContains(t, doc.Features[2].Properties, "call")
	require.Equal(t, []float64{72.79, 19.0, 72.81, 19.02}, doc.BBox)

	r.Clear()
	raw, err = json.Marshal(g)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "bbox")
}

func TestBound(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	fc.Append(geojson.NewFeature(orb.Point{-3, 5}))
	require.Equal(t, orb.Bound{Min: orb.Point{-3, 2}, Max: orb.Point{1, 5}}, bound(fc))
}

func TestGeoJSONRenderer_RejectsBadCoordinates(t *testing.T) {
	r := NewGeoJSONRenderer()
	err := r.RenderMarkers([]Marker{{Position: domain.Coordinate{Lat: 91}}})
	require.Error(t, err)
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TextRenderer{W: &buf}.RenderMarkers(Markers(sampleResult())))
	out := buf.String()
	require.Contains(t, out, "Your location")
	require.Contains(t, out, " 1. City Hospital")
	require.Contains(t, out, " 2. North Clinic")
	require.Contains(t, out, "📞 tel:+91 22 1234 5678")
	require.Equal(t, 1, strings.Count(out, "📞"))
}
