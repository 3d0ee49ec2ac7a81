// Package location resolves the user's position for the hospital finder.
package location

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"health-assistant/internal/domain"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrPermissionDenied = errors.New("Location access denied")
	ErrUnavailable      = errors.New("Location unavailable")
	ErrTimeout          = errors.New("Location request timed out")
)

type Locator interface {
	Locate(ctx context.Context) (domain.Coordinate, error)
}

// StaticLocator always reports the same configured position.
type StaticLocator struct {
	Position *domain.Coordinate
}

func (s StaticLocator) Locate(context.Context) (domain.Coordinate, error) {
	if s.Position == nil {
		return domain.Coordinate{}, ErrUnavailable
	}
	return *s.Position, nil
}

// DeniedLocator is used when location sharing is switched off.
type DeniedLocator struct{}

func (DeniedLocator) Locate(context.Context) (domain.Coordinate, error) {
	return domain.Coordinate{}, fmt.Errorf("%w: location sharing is disabled", ErrPermissionDenied)
}

type ipResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// IPLocator approximates the position from the caller's public IP using an
// ip-api.com compatible endpoint. It makes a single attempt.
type IPLocator struct {
	client *resty.Client
	url    string
}

func NewIPLocator(url string, timeout time.Duration) (*IPLocator, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("location: ip lookup url must not be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &IPLocator{
		client: resty.New().SetTimeout(timeout).SetRetryCount(0),
		url:    url,
	}, nil
}

func (l *IPLocator) Locate(ctx context.Context) (domain.Coordinate, error) {
	var out ipResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&out).
		Get(l.url)
	if err != nil {
		if isTimeout(err) {
			return domain.Coordinate{}, ErrTimeout
		}
		return domain.Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return domain.Coordinate{}, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode())
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return domain.Coordinate{}, fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
	return domain.Coordinate{Lat: out.Lat, Lng: out.Lon}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
