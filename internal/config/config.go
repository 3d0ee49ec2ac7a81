// Package config loads the process configuration once at startup from an
// optional YAML file and MEDASSIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"health-assistant/internal/logging"
)

const envPrefix = "MEDASSIST"

type Config struct {
	Log       logging.Config  `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Session   SessionConfig   `mapstructure:"session"`
	History   HistoryConfig   `mapstructure:"history"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Hospitals HospitalsConfig `mapstructure:"hospitals"`
	Location  LocationConfig  `mapstructure:"location"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BodyLimitBytes  int64         `mapstructure:"body_limit_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// GatewayConfig locates the hosted chat gateway used by the terminal client.
// An empty URL or key switches the client to local mode.
type GatewayConfig struct {
	URL       string        `mapstructure:"url"`
	ClientKey string        `mapstructure:"client_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (g GatewayConfig) Configured() bool {
	return strings.TrimSpace(g.URL) != "" && strings.TrimSpace(g.ClientKey) != ""
}

type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	// KeyParameter names an SSM parameter holding {"token": "..."}; used
	// when APIKey is empty. Relative names resolve under KeyPrefix.
	KeyParameter string        `mapstructure:"key_parameter"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxMessages  int           `mapstructure:"max_messages"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Required  bool   `mapstructure:"required"`
}

// SessionConfig identifies the terminal client's user.
type SessionConfig struct {
	AccessToken string `mapstructure:"access_token"`
	UserID      string `mapstructure:"user_id"`
}

type HistoryConfig struct {
	Backend    string `mapstructure:"backend"` // none, dynamodb, postgres, sqlite
	Table      string `mapstructure:"table"`
	DSN        string `mapstructure:"dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type StorageConfig struct {
	Backend   string         `mapstructure:"backend"` // none, s3, supabase
	Bucket    string         `mapstructure:"bucket"`
	SignedTTL time.Duration  `mapstructure:"signed_ttl"`
	S3        S3Config       `mapstructure:"s3"`
	Supabase  SupabaseConfig `mapstructure:"supabase"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type HospitalsConfig struct {
	Backend        string        `mapstructure:"backend"` // overpass, places
	RadiusMeters   float64       `mapstructure:"radius_meters"`
	Limit          int           `mapstructure:"limit"`
	OverpassURLs   []string      `mapstructure:"overpass_urls"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	PlacesURL      string        `mapstructure:"places_url"`
	PlacesAPIKey   string        `mapstructure:"places_api_key"`
}

type LocationConfig struct {
	Provider string        `mapstructure:"provider"` // none, static, ip
	Lat      float64       `mapstructure:"lat"`
	Lng      float64       `mapstructure:"lng"`
	IPURL    string        `mapstructure:"ip_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service", "medassist")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit_bytes", 12<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("gateway.url", "")
	v.SetDefault("gateway.client_key", "")
	v.SetDefault("gateway.timeout", "0s")

	v.SetDefault("llm.base_url", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("llm.model", "google/gemini-3-flash-preview")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.key_parameter", "")
	v.SetDefault("llm.key_prefix", "")
	v.SetDefault("llm.timeout", "0s")
	v.SetDefault("llm.max_messages", 100)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.required", false)

	v.SetDefault("session.access_token", "")
	v.SetDefault("session.user_id", "")

	v.SetDefault("history.backend", "none")
	v.SetDefault("history.table", "medassist-chat-history")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.sqlite_path", "medassist.db")

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.bucket", "medical-images")
	v.SetDefault("storage.signed_ttl", "8760h")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.supabase.url", "")
	v.SetDefault("storage.supabase.api_key", "")

	v.SetDefault("hospitals.backend", "overpass")
	v.SetDefault("hospitals.radius_meters", 10000)
	v.SetDefault("hospitals.limit", 20)
	v.SetDefault("hospitals.overpass_urls", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
		"https://overpass.openstreetmap.ru/api/interpreter",
	})
	v.SetDefault("hospitals.attempt_timeout", "20s")
	v.SetDefault("hospitals.places_url", "https://maps.googleapis.com/maps/api/place/nearbysearch/json")
	v.SetDefault("hospitals.places_api_key", "")

	v.SetDefault("location.provider", "ip")
	v.SetDefault("location.lat", 0.0)
	v.SetDefault("location.lng", 0.0)
	v.SetDefault("location.ip_url", "http://ip-api.com/json")
	v.SetDefault("location.timeout", "10s")
}

// Load reads path when given, otherwise looks for medassist.yaml in the
// working directory and ./config. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("medassist")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects backend names nothing can serve.
func (c *Config) Validate() error {
	if !oneOf(c.History.Backend, "none", "dynamodb", "postgres", "sqlite") {
		return fmt.Errorf("config: unknown history backend %q", c.History.Backend)
	}
	if !oneOf(c.Storage.Backend, "none", "s3", "supabase") {
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if !oneOf(c.Hospitals.Backend, "overpass", "places") {
		return fmt.Errorf("config: unknown hospitals backend %q", c.Hospitals.Backend)
	}
	if !oneOf(c.Location.Provider, "none", "static", "ip") {
		return fmt.Errorf("config: unknown location provider %q", c.Location.Provider)
	}
	if c.History.Backend == "postgres" && strings.TrimSpace(c.History.DSN) == "" {
		return errors.New("config: history.dsn is required for the postgres backend")
	}
	if c.Hospitals.Backend == "places" && strings.TrimSpace(c.Hospitals.PlacesAPIKey) == "" {
		return errors.New("config: hospitals.places_api_key is required for the places backend")
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
