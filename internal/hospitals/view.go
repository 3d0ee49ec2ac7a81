package hospitals

import (
	"health-assistant/internal/domain"
	"health-assistant/internal/geo"
)

// Listing is a hospital with the display text and links a client needs.
type Listing struct {
	domain.Hospital
	DistanceText  string `json:"distance_text"`
	DirectionsURL string `json:"directions_url"`
	MapURL        string `json:"map_url"`
	CallURI       string `json:"call_uri,omitempty"`
}

type View struct {
	Origin    domain.Coordinate `json:"origin"`
	Hospitals []Listing         `json:"hospitals"`
	Message   string            `json:"message,omitempty"`
	Emergency string            `json:"emergency"`
}

// Present renders a search result for clients. An empty result carries the
// no-hospitals message.
func Present(res Result) View {
	v := View{
		Origin:    res.Origin,
		Hospitals: make([]Listing, 0, len(res.Hospitals)),
		Emergency: domain.EmergencyURI,
	}
	for _, h := range res.Hospitals {
		origin := res.Origin
		l := Listing{
			Hospital:      h,
			DistanceText:  geo.FormatDistance(h.Distance),
			DirectionsURL: geo.DirectionsURL(h.Location, &origin),
			MapURL:        geo.OpenStreetMapURL(h.Location),
		}
		if uri, err := geo.CallURI(h.Phone); err == nil {
			l.CallURI = uri
		}
		v.Hospitals = append(v.Hospitals, l)
	}
	if res.Empty() {
		v.Message = NoHospitalsMessage
	}
	return v
}
