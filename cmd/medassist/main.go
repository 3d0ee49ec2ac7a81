package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"health-assistant/internal/app"
	"health-assistant/internal/assistant"
	"health-assistant/internal/attachments"
	"health-assistant/internal/cli"
	"health-assistant/internal/config"
	"health-assistant/internal/domain"
	"health-assistant/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	langFlag := flag.String("lang", "english", "reply language")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logging.L()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)
	log = logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, log)

	userID := cfg.Session.UserID
	if cfg.Session.AccessToken != "" {
		ctx = attachments.WithAccessToken(ctx, cfg.Session.AccessToken)
		verifier, err := app.Verifier(cfg.Auth)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create token verifier")
		}
		if verifier != nil {
			id, err := verifier.Verify(cfg.Session.AccessToken)
			if err != nil {
				log.Fatal().Err(err).Msg("session access token rejected")
			}
			userID = id.UserID
		}
	}

	lang, ok := domain.ParseLanguage(*langFlag)
	if !ok {
		log.Warn().Str(logging.FieldLanguage, *langFlag).Msg("unknown language, using english")
	}
	opts := []assistant.Option{assistant.WithUser(userID), assistant.WithLanguage(lang)}

	gw, err := app.Gateway(cfg.Gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway client")
	}
	if gw != nil {
		opts = append(opts, assistant.WithGateway(gw))
	}

	history, err := app.History(ctx, cfg.History, app.DefaultAWSLoader)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.History.Backend).Msg("failed to open chat history")
	}
	if history != nil {
		opts = append(opts, assistant.WithHistory(history))
	}

	uploader, err := app.Uploader(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to create attachment storage")
	}
	opts = append(opts, assistant.WithUploader(uploader))

	console := &cli.Console{
		Session: assistant.NewSession(opts...),
		In:      os.Stdin,
		Out:     os.Stdout,
	}
	hospitalService, err := app.Hospitals(cfg.Hospitals, cfg.Location)
	if err != nil {
		log.Warn().Err(err).Msg("hospital search disabled")
	} else {
		console.Hospitals = hospitalService
	}

	if err := console.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("console stopped")
	}
}
