package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"health-assistant/internal/attachments"
	"health-assistant/internal/auth"
	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
	"health-assistant/internal/location"
	"health-assistant/internal/logging"
	"health-assistant/internal/maps"
	"health-assistant/internal/usecase"
)

const (
	msgInvalidBody      = "Invalid request body"
	msgNotConfigured    = "This feature is not configured on the server."
	msgSearchFailed     = "Failed to search for hospitals. Please try again or check your internet connection."
	locationRemediation = ". Please allow location access and try again."
)

type handlers struct {
	deps Deps
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// chatStatus follows the hosted gateway contract: upstream failures other
// than rate limiting and exhausted credits surface as 500.
func chatStatus(err error) (int, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, usecase.MessageUpstream
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, ucErr.UserMessage()
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, ucErr.UserMessage()
	case usecase.ErrorPaymentRequired:
		return http.StatusPaymentRequired, ucErr.UserMessage()
	default:
		return http.StatusInternalServerError, ucErr.UserMessage()
	}
}

func bindChat(c *gin.Context) (usecase.ChatInput, bool) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("invalid chat request body")
		errorJSON(c, http.StatusBadRequest, msgInvalidBody)
		return usecase.ChatInput{}, false
	}
	return usecase.ChatInput{Messages: req.Messages, Language: string(req.Language)}, true
}

func (h *handlers) chatStream(c *gin.Context) {
	in, ok := bindChat(c)
	if !ok {
		return
	}
	body, err := h.deps.Chat.OpenStream(c.Request.Context(), in)
	if err != nil {
		status, msg := chatStatus(err)
		errorJSON(c, status, msg)
		return
	}
	defer func() { _ = body.Close() }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				logging.Ctx(c.Request.Context()).Warn().Err(werr).Msg("client went away during chat stream")
				return
			}
			c.Writer.Flush()
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("chat stream interrupted")
			return
		}
	}
}

func (h *handlers) chatReply(c *gin.Context) {
	in, ok := bindChat(c)
	if !ok {
		return
	}
	reply, err := h.deps.Chat.Reply(c.Request.Context(), in)
	if err != nil {
		status, msg := chatStatus(err)
		errorJSON(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

type appendHistoryRequest struct {
	Language domain.Language `json:"language"`
	Role     domain.Role     `json:"role"`
	Content  string          `json:"content"`
	ImageURL string          `json:"image_url"`
}

func (h *handlers) listHistory(c *gin.Context) {
	if h.deps.History == nil {
		errorJSON(c, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}
	ctx := c.Request.Context()
	lang, _ := domain.ParseLanguage(c.Query("language"))
	msgs, err := h.deps.History.List(ctx, auth.FromContext(ctx).UserID, lang)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to load chat history")
		errorJSON(c, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"language": lang, "messages": msgs})
}

func (h *handlers) appendHistory(c *gin.Context) {
	if h.deps.History == nil {
		errorJSON(c, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}
	var req appendHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Role != domain.RoleUser && req.Role != domain.RoleAssistant {
		errorJSON(c, http.StatusBadRequest, "Messages must come from the user or the assistant.")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		errorJSON(c, http.StatusBadRequest, "Messages must not be empty.")
		return
	}

	ctx := c.Request.Context()
	lang, _ := domain.ParseLanguage(string(req.Language))
	msg := domain.Message{Role: req.Role, Content: req.Content, ImageURL: req.ImageURL}
	if err := h.deps.History.Append(ctx, auth.FromContext(ctx).UserID, lang, msg); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to save chat message")
		errorJSON(c, http.StatusInternalServerError, "Failed to save chat message")
		return
	}
	c.Status(http.StatusCreated)
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, attachments.ErrAuthRequired), errors.Is(err, attachments.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, attachments.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, attachments.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, attachments.ErrPolicyDenied):
		return http.StatusForbidden
	case errors.Is(err, attachments.ErrBucketNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *handlers) uploadAttachment(c *gin.Context) {
	if h.deps.Uploader == nil {
		errorJSON(c, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}
	ctx := c.Request.Context()
	id := auth.FromContext(ctx)
	if !id.Authenticated() {
		errorJSON(c, http.StatusUnauthorized, attachments.ErrAuthRequired.Error())
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, attachments.ErrNotImage.Error())
		return
	}
	if fh.Size > attachments.MaxImageBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, attachments.ErrTooLarge.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, attachments.MaxImageBytes+1))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	img := attachments.Image{Name: fh.Filename, ContentType: contentType, Data: data}

	up, err := h.deps.Uploader.Upload(attachments.WithAccessToken(ctx, id.Token), id.UserID, img)
	if err != nil {
		errorJSON(c, uploadStatus(err), attachments.Remediation(err))
		return
	}
	c.JSON(http.StatusOK, up)
}

func parseCenter(c *gin.Context) (*domain.Coordinate, bool) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
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

func locationMessage(err error) (string, bool) {
	for _, sentinel := range []error{location.ErrPermissionDenied, location.ErrTimeout, location.ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return sentinel.Error() + locationRemediation, true
		}
	}
	return "", false
}

func (h *handlers) nearbyHospitals(c *gin.Context) {
	if h.deps.Hospitals == nil {
		errorJSON(c, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}
	center, ok := parseCenter(c)
	if !ok {
		errorJSON(c, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}

	ctx := c.Request.Context()
	res, err := h.deps.Hospitals.Nearby(ctx, center)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("hospital search failed")
		if msg, ok := locationMessage(err); ok {
			errorJSON(c, http.StatusServiceUnavailable, msg)
			return
		}
		errorJSON(c, http.StatusBadGateway, msgSearchFailed)
		return
	}

	if c.Query("format") == "geojson" {
		renderer := maps.NewGeoJSONRenderer()
		if err := renderer.RenderMarkers(maps.Markers(res)); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("failed to render markers")
			errorJSON(c, http.StatusInternalServerError, msgSearchFailed)
			return
		}
		raw, err := renderer.MarshalJSON()
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, msgSearchFailed)
			return
		}
		c.Data(http.StatusOK, "application/geo+json", raw)
		return
	}
	c.JSON(http.StatusOK, hospitals.Present(res))
}

func (h *handlers) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": domain.Languages()})
}

func (h *handlers) emergency(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"number": strings.TrimPrefix(domain.EmergencyURI, "tel:"), "uri": domain.EmergencyURI})
}
