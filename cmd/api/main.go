package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"health-assistant/internal/app"
	"health-assistant/internal/config"
	"health-assistant/internal/logging"
	"health-assistant/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
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

	chatService, err := app.Chat(ctx, cfg.LLM, app.DefaultAWSLoader)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create chat service")
	}

	deps := server.Deps{Chat: chatService, Logger: log}

	history, err := app.History(ctx, cfg.History, app.DefaultAWSLoader)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.History.Backend).Msg("failed to open chat history")
	}
	if history != nil {
		deps.History = history
	}

	uploader, err := app.Uploader(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to create attachment storage")
	}
	if !uploader.LocalMode() {
		deps.Uploader = uploader
	}

	hospitalService, err := app.Hospitals(cfg.Hospitals, cfg.Location)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Hospitals.Backend).Msg("failed to create hospital search")
	}
	deps.Hospitals = hospitalService

	verifier, err := app.Verifier(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token verifier")
	}
	if verifier == nil && cfg.Auth.Required {
		log.Fatal().Msg("auth.required is set but auth.jwt_secret is empty")
	}
	deps.Verifier = verifier

	router, err := server.NewRouter(deps, cfg.Server, cfg.Auth.Required)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	log.Info().
		Str("history", cfg.History.Backend).
		Str("storage", cfg.Storage.Backend).
		Str("hospitals", cfg.Hospitals.Backend).
		Bool("auth", verifier != nil).
		Msg("backends ready")

	if err := server.Run(ctx, cfg.Server.Addr, router, cfg.Server.ShutdownTimeout); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
