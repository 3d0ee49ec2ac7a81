package domain

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Hospital is the normalized record every search backend produces.
// It is rebuilt on each search and never persisted.
type Hospital struct {
	ID       string     `json:"place_id"`
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
	Address  string     `json:"address,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	Distance *float64   `json:"distance,omitempty"` // metres from the search origin
	Rating   *float64   `json:"rating,omitempty"`
}

// EmergencyURI is the fixed ambulance dial-out.
const EmergencyURI = "tel:108"
