package hospitals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"health-assistant/internal/domain"
)

func TestNewPlacesSearcher_RequiresKey(t *testing.T) {
	_, err := NewPlacesSearcher("", "", 0)
	require.Error(t, err)
}

func TestPlaces_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "19.076,72.8777", q.Get("location"))
		require.Equal(t, "10000", q.Get("radius"))
		require.Equal(t, "hospital", q.Get("type"))
		require.Equal(t, "test-key", q.Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "status": "OK",
		  "results": [
		    {"place_id":"abc","name":"Lilavati Hospital","vicinity":"Bandra West","rating":4.3,
		     "geometry":{"location":{"lat":19.051,"lng":72.829}}},
		    {"place_id":"def","name":"Unrated Clinic","geometry":{"location":{"lat":19.1,"lng":72.9}}}
		  ]
		}`))
	}))
	defer srv.Close()

	p, err := NewPlacesSearcher("test-key", srv.URL, time.Second)
	require.NoError(t, err)
	hs, err := p.Search(context.Background(), domain.Coordinate{Lat: 19.076, Lng: 72.8777}, 10000)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	require.Equal(t, "abc", hs[0].ID)
	require.Equal(t, "Bandra West", hs[0].Address)
	require.NotNil(t, hs[0].Rating)
	require.Equal(t, 4.3, *hs[0].Rating)
	require.NotNil(t, hs[0].Distance)
	require.Nil(t, hs[1].Rating)
}

func TestPlaces_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	p, err := NewPlacesSearcher("k", srv.URL, time.Second)
	require.NoError(t, err)
	hs, err := p.Search(context.Background(), domain.Coordinate{}, 10000)
	require.NoError(t, err)
	require.Empty(t, hs)
}

func TestPlaces_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	}))
	defer srv.Close()

	p, err := NewPlacesSearcher("k", srv.URL, time.Second)
	require.NoError(t, err)
	_, err = p.Search(context.Background(), domain.Coordinate{}, 10000)
	require.ErrorContains(t, err, "The provided API key is invalid.")
}
