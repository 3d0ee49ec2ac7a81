package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// KeySource yields the bearer token for the inference endpoint.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// ConfigError reports a credential missing from configuration, as opposed
// to a lookup that failed.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

func (e *ConfigError) NotConfigured() bool {
	return true
}

// StaticKey is a key taken directly from configuration.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", &ConfigError{Msg: "llm: API key is not configured"}
	}
	return key, nil
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamKey reads {"token": "..."} from a parameter store entry.
type ParamKey struct {
	Getter Getter
	Name   string
}

type tokenPayload struct {
	Token string `json:"token"`
}

func (p ParamKey) APIKey(ctx context.Context) (string, error) {
	if p.Getter == nil {
		return "", &ConfigError{Msg: "llm: paramstore getter is nil"}
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "", &ConfigError{Msg: "llm: token parameter name is empty"}
	}

	raw, err := p.Getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("llm: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("llm: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", &ConfigError{Msg: "llm: API token is empty"}
	}
	return tp.Token, nil
}
