// Package handler adapts API Gateway proxy events to the chat and hospital
// services for the Lambda deployment.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
	"health-assistant/internal/location"
	"health-assistant/internal/logging"
	"health-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Reply(ctx context.Context, in usecase.ChatInput) (string, error)
}

type HospitalFinder interface {
	Nearby(ctx context.Context, center *domain.Coordinate) (hospitals.Result, error)
}

type Handler struct {
	chat      ChatUseCase
	hospitals HospitalFinder
}

type Option func(*Handler)

// WithHospitals enables GET /hospitals.
func WithHospitals(f HospitalFinder) Option {
	return func(h *Handler) {
		h.hospitals = f
	}
}

func NewHandler(chat ChatUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &Handler{chat: chat}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := logging.L().With().
		Str(logging.FieldRequestID, correlationID).
		Str(logging.FieldMethod, req.HTTPMethod).
		Str(logging.FieldPath, req.Path).
		Logger()
	ctx = logging.WithLogger(ctx, logger)

	var resp events.APIGatewayProxyResponse
	switch route := strings.TrimSuffix(req.Path, "/"); {
	case req.HTTPMethod == http.MethodOptions:
		resp = events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	case req.HTTPMethod == http.MethodPost && route == "/chat":
		resp = h.handleChat(ctx, req)
	case req.HTTPMethod == http.MethodGet && route == "/hospitals":
		resp = h.handleHospitals(ctx, req)
	case req.HTTPMethod == http.MethodGet && route == "/languages":
		resp = jsonResponse(http.StatusOK, map[string]any{"languages": domain.Languages()})
	default:
		resp = jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"})
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	resp.Headers["Access-Control-Allow-Origin"] = "*"
	resp.Headers["Access-Control-Allow-Headers"] = "authorization, x-client-info, apikey, content-type"
	logger.Info().Int(logging.FieldStatus, resp.StatusCode).Msg("request handled")
	return resp, nil
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body domain.ChatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("invalid chat request body")
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "Invalid request body"})
	}

	reply, err := h.chat.Reply(ctx, usecase.ChatInput{Messages: body.Messages, Language: string(body.Language)})
	if err != nil {
		return errorFromUseCase(ctx, err)
	}
	return jsonResponse(http.StatusOK, chatResponse{Reply: reply})
}

func (h *Handler) handleHospitals(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if h.hospitals == nil {
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"})
	}
	center, ok := parseCenter(req.QueryStringParameters)
	if !ok {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "lat and lng must be valid coordinates"})
	}
	res, err := h.hospitals.Nearby(ctx, center)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("hospital search failed")
		if errors.Is(err, location.ErrPermissionDenied) || errors.Is(err, location.ErrUnavailable) || errors.Is(err, location.ErrTimeout) {
			return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "lat and lng are required"})
		}
		return jsonResponse(http.StatusBadGateway, errorResponse{Error: string(usecase.ErrorUpstream)})
	}
	return jsonResponse(http.StatusOK, hospitals.Present(res))
}

func parseCenter(q map[string]string) (*domain.Coordinate, bool) {
	latRaw, lngRaw := strings.TrimSpace(q["lat"]), strings.TrimSpace(q["lng"])
	if latRaw == "" && lngRaw == "" {
		return nil, true
	}
	lat, err1 := strconv.ParseFloat(latRaw, 64)
	lng, err2 := strconv.ParseFloat(lngRaw, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, false
	}
	return &domain.Coordinate{Lat: lat, Lng: lng}, true
}

func errorFromUseCase(ctx context.Context, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logging.Ctx(ctx).Error().Err(err).Msg("unexpected error")
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorPaymentRequired:
		status = http.StatusPaymentRequired
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}
	logging.Ctx(ctx).Warn().Err(err).Str("code", string(ucErr.Code)).Str("reason", ucErr.Reason).Msg("request failed")
	return jsonResponse(status, errorResponse{Error: string(ucErr.Code), Message: ucErr.UserMessage()})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
