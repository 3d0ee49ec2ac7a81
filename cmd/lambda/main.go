package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"health-assistant/handler"
	"health-assistant/internal/app"
	"health-assistant/internal/config"
	"health-assistant/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("MEDASSIST_CONFIG"))
	log := logging.L()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)
	log = logging.L()

	// ---- Clients ----
	chatService, err := app.Chat(ctx, cfg.LLM, app.DefaultAWSLoader)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create chat service")
	}
	hospitalService, err := app.Hospitals(cfg.Hospitals, cfg.Location)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create hospital search")
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService, handler.WithHospitals(hospitalService))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}
