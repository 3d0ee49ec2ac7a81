// Package paramstore reads secrets such as the inference API token from AWS
// Systems Manager Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the slice of *ssm.Client the store uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is what consumers depend on, so they stay testable without AWS.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Store resolves parameter names relative to an optional prefix and keeps
// successfully read values for the life of the process.
type Store struct {
	api    ssmAPI
	prefix string

	mu    sync.Mutex
	cache map[string]string
}

type Option func(*Store)

// WithPrefix makes names that do not start with "/" relative to prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

func New(api ssmAPI, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	s := &Store{api: api, cache: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) resolve(name string) string {
	if s.prefix == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return s.prefix + "/" + name
}

// GetParameter returns the decrypted value of name. Failures are not cached.
func (s *Store) GetParameter(ctx context.Context, name string) (string, error) {
	if s == nil || s.api == nil {
		return "", errors.New("paramstore: store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	full := s.resolve(name)

	s.mu.Lock()
	v, ok := s.cache[full]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(full),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", full, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", full)
	}

	s.mu.Lock()
	s.cache[full] = *out.Parameter.Value
	s.mu.Unlock()
	return *out.Parameter.Value, nil
}
