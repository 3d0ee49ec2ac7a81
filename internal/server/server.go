// Package server exposes the chat gateway, history, attachments and hospital
// search over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"health-assistant/internal/attachments"
	"health-assistant/internal/auth"
	"health-assistant/internal/config"
	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
	"health-assistant/internal/logging"
	"health-assistant/internal/repository"
	"health-assistant/internal/usecase"
)

type ChatService interface {
	OpenStream(ctx context.Context, in usecase.ChatInput) (io.ReadCloser, error)
	Reply(ctx context.Context, in usecase.ChatInput) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, userID string, img attachments.Image) (attachments.Upload, error)
}

type HospitalFinder interface {
	Nearby(ctx context.Context, center *domain.Coordinate) (hospitals.Result, error)
}

// Deps are the services behind the routes. Only Chat is required; routes
// whose backend is nil answer 503.
type Deps struct {
	Chat      ChatService
	History   repository.Store
	Uploader  Uploader
	Hospitals HospitalFinder
	Verifier  *auth.Verifier
	Logger    zerolog.Logger
}

var corsHeaders = []string{"authorization", "x-client-info", "apikey", "content-type", logging.HeaderRequestID}

// NewRouter wires middleware and routes.
func NewRouter(deps Deps, cfg config.ServerConfig, authRequired bool) (*gin.Engine, error) {
	if deps.Chat == nil {
		return nil, errors.New("server: chat service must not be nil")
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := &handlers{deps: deps}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		logging.GinMiddleware(deps.Logger),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  corsHeaders,
			ExposeHeaders: []string{logging.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}),
		limitBodySize(cfg.BodyLimitBytes),
		auth.GinMiddleware(deps.Verifier, authRequired),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST(ChatStreamPath, h.chatStream)
	r.POST("/api/chat/reply", h.chatReply)

	api := r.Group("/api")
	api.GET("/history", auth.RequireUser(), h.listHistory)
	api.POST("/history", auth.RequireUser(), h.appendHistory)
	api.POST("/attachments", h.uploadAttachment)
	api.GET("/hospitals", h.nearbyHospitals)
	api.GET("/languages", h.languages)
	api.GET("/emergency", h.emergency)

	return r, nil
}

// ChatStreamPath matches the hosted gateway's function route.
const ChatStreamPath = "/functions/v1/medical-chat"

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := logging.L()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
