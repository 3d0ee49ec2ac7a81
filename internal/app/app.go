// Package app builds the configured backends shared by the binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"health-assistant/internal/attachments"
	"health-assistant/internal/auth"
	"health-assistant/internal/config"
	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
	"health-assistant/internal/integrations/gateway"
	"health-assistant/internal/integrations/llm"
	"health-assistant/internal/integrations/paramstore"
	"health-assistant/internal/location"
	"health-assistant/internal/repository"
	"health-assistant/internal/usecase"
)

// AWSLoader loads the shared AWS configuration. It is only called by
// backends that need AWS.
type AWSLoader func(ctx context.Context) (aws.Config, error)

func DefaultAWSLoader(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// History returns the transcript store, or nil for the "none" backend.
func History(ctx context.Context, cfg config.HistoryConfig, loadAWS AWSLoader) (repository.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "dynamodb":
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "sqlite":
		dsn := cfg.DSN
		if cfg.Backend == "sqlite" && strings.TrimSpace(dsn) == "" {
			dsn = cfg.SQLitePath
		}
		db, err := repository.OpenDB(cfg.Backend, dsn)
		if err != nil {
			return nil, err
		}
		store, err := repository.NewSQLStore(db)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown history backend %q", cfg.Backend)
	}
}

// Uploader returns the attachment pipeline. The "none" backend yields a
// pipeline in local mode.
func Uploader(ctx context.Context, cfg config.StorageConfig) (*attachments.Pipeline, error) {
	var store attachments.ObjectStore
	switch cfg.Backend {
	case "", "none":
	case "s3":
		s3Store, err := attachments.NewS3Store(ctx, attachments.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	case "supabase":
		sbStore, err := attachments.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.APIKey, cfg.Bucket, nil)
		if err != nil {
			return nil, err
		}
		store = sbStore
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", cfg.Backend)
	}
	return attachments.NewPipeline(store, attachments.WithSignedURLTTL(cfg.SignedTTL)), nil
}

func Locator(cfg config.LocationConfig) (location.Locator, error) {
	switch cfg.Provider {
	case "", "none":
		return location.DeniedLocator{}, nil
	case "static":
		return location.StaticLocator{Position: &domain.Coordinate{Lat: cfg.Lat, Lng: cfg.Lng}}, nil
	case "ip":
		ip, err := location.NewIPLocator(cfg.IPURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return ip, nil
	default:
		return nil, fmt.Errorf("app: unknown location provider %q", cfg.Provider)
	}
}

// Hospitals builds the search service with its backend and locator.
func Hospitals(cfg config.HospitalsConfig, locCfg config.LocationConfig) (*hospitals.Service, error) {
	var searcher hospitals.Searcher
	switch cfg.Backend {
	case "", "overpass":
		searcher = hospitals.NewOverpassSearcher(
			hospitals.WithMirrors(cfg.OverpassURLs...),
			hospitals.WithAttemptTimeout(cfg.AttemptTimeout),
		)
	case "places":
		places, err := hospitals.NewPlacesSearcher(cfg.PlacesAPIKey, cfg.PlacesURL, cfg.AttemptTimeout)
		if err != nil {
			return nil, err
		}
		searcher = places
	default:
		return nil, fmt.Errorf("app: unknown hospitals backend %q", cfg.Backend)
	}

	locator, err := Locator(locCfg)
	if err != nil {
		return nil, err
	}
	return hospitals.NewService(searcher, locator,
		hospitals.WithRadius(cfg.RadiusMeters),
		hospitals.WithLimit(cfg.Limit),
	)
}

// LLM builds the upstream model client. The API key comes from config, or
// from the parameter store when only a parameter name is set.
func LLM(ctx context.Context, cfg config.LLMConfig, loadAWS AWSLoader) (*llm.Client, error) {
	var keys llm.KeySource = llm.StaticKey(cfg.APIKey)
	if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.KeyParameter) != "" {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, err
		}
		keys = llm.ParamKey{Getter: params, Name: cfg.KeyParameter}
	}
	opts := []llm.Option{llm.WithModel(cfg.Model), llm.WithTimeout(cfg.Timeout)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewClient(keys, opts...)
}

// Chat builds the chat use case on top of the configured model client.
func Chat(ctx context.Context, cfg config.LLMConfig, loadAWS AWSLoader) (*usecase.ChatService, error) {
	client, err := LLM(ctx, cfg, loadAWS)
	if err != nil {
		return nil, err
	}
	return usecase.NewChatService(client, usecase.WithMaxMessages(cfg.MaxMessages))
}

// Verifier returns nil when no signing secret is configured.
func Verifier(cfg config.AuthConfig) (*auth.Verifier, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, nil
	}
	return auth.NewVerifier(cfg.JWTSecret)
}

// Gateway returns nil when the hosted gateway is not configured, which puts
// the terminal client in local mode.
func Gateway(cfg config.GatewayConfig) (*gateway.Client, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	return gateway.NewClient(cfg.URL, cfg.ClientKey, gateway.WithReplyTimeout(cfg.Timeout))
}
