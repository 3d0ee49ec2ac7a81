// Package maps renders hospital search results as map markers.
package maps

import (
	"fmt"
	"io"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"health-assistant/internal/domain"
	"health-assistant/internal/geo"
	"health-assistant/internal/hospitals"
)

type MarkerKind string

const (
	KindOrigin   MarkerKind = "origin"
	KindHospital MarkerKind = "hospital"
)

type Marker struct {
	Kind     MarkerKind
	Position domain.Coordinate
	Title    string
	Subtitle string
	Link     string
	CallURI  string // empty when the hospital has no phone
}

// MarkerRenderer draws a set of markers, replacing anything drawn before.
type MarkerRenderer interface {
	RenderMarkers(markers []Marker) error
	Clear()
}

// Markers turns a search result into an origin marker followed by one marker
// per hospital, in result order.
func Markers(res hospitals.Result) []Marker {
	out := make([]Marker, 0, len(res.Hospitals)+1)
	out = append(out, Marker{Kind: KindOrigin, Position: res.Origin, Title: "Your location"})
	for _, h := range res.Hospitals {
		subtitle := geo.FormatDistance(h.Distance)
		if h.Address != "" {
			subtitle = h.Address + " · " + subtitle
		}
		m := Marker{
			Kind:     KindHospital,
			Position: h.Location,
			Title:    h.Name,
			Subtitle: subtitle,
			Link:     geo.DirectionsURL(h.Location, &res.Origin),
		}
		if uri, err := geo.CallURI(h.Phone); err == nil {
			m.CallURI = uri
		}
		out = append(out, m)
	}
	return out
}

// GeoJSONRenderer keeps the last rendered markers as a GeoJSON
// FeatureCollection. It is safe for concurrent use.
type GeoJSONRenderer struct {
	mu sync.Mutex
	fc *geojson.FeatureCollection
}

func NewGeoJSONRenderer() *GeoJSONRenderer {
	return &GeoJSONRenderer{fc: geojson.NewFeatureCollection()}
}

func (r *GeoJSONRenderer) RenderMarkers(markers []Marker) error {
	fc := geojson.NewFeatureCollection()
	for i, m := range markers {
		if m.Position.Lat < -90 || m.Position.Lat > 90 || m.Position.Lng < -180 || m.Position.Lng > 180 {
			return fmt.Errorf("maps: marker %d: coordinate out of range", i)
		}
		f := geojson.NewFeature(orb.Point{m.Position.Lng, m.Position.Lat})
		f.Properties["kind"] = string(m.Kind)
		f.Properties["title"] = m.Title
		if m.Subtitle != "" {
			f.Properties["subtitle"] = m.Subtitle
		}
		if m.Link != "" {
			f.Properties["link"] = m.Link
		}
		if m.CallURI != "" {
			f.Properties["call"] = m.CallURI
		}
		fc.Append(f)
	}
	if len(fc.Features) > 0 {
		fc.BBox = geojson.NewBBox(bound(fc))
	}

	r.mu.Lock()
	r.fc = fc
	r.mu.Unlock()
	return nil
}

func (r *GeoJSONRenderer) Clear() {
	r.mu.Lock()
	r.fc = geojson.NewFeatureCollection()
	r.mu.Unlock()
}

func (r *GeoJSONRenderer) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fc.MarshalJSON()
}

// bound is the smallest box holding every marker, for fitting a viewport.
func bound(fc *geojson.FeatureCollection) orb.Bound {
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// TextRenderer lists markers as plain lines, for terminals.
type TextRenderer struct {
	W io.Writer
}

func (t TextRenderer) RenderMarkers(markers []Marker) error {
	n := 0
	for _, m := range markers {
		var err error
		switch m.Kind {
		case KindOrigin:
			_, err = fmt.Fprintf(t.W, "📍 %s (%.5f, %.5f)\n", m.Title, m.Position.Lat, m.Position.Lng)
		default:
			n++
			_, err = fmt.Fprintf(t.W, "%2d. %s\n    %s\n    %s\n", n, m.Title, m.Subtitle, m.Link)
			if err == nil && m.CallURI != "" {
				_, err = fmt.Fprintf(t.W, "    📞 %s\n", m.CallURI)
			}
		}
		if err != nil {
			return fmt.Errorf("maps: write marker: %w", err)
		}
	}
	return nil
}

func (TextRenderer) Clear() {}
