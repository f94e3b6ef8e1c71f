// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/votrix/tapo-energy-gateway/chat"
	"github.com/votrix/tapo-energy-gateway/devices"
	"github.com/votrix/tapo-energy-gateway/energy"
	apperrors "github.com/votrix/tapo-energy-gateway/pkg/errors"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
	"github.com/votrix/tapo-energy-gateway/pkg/metrics"
)

const (
	defaultTemperature     = 0.7
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxOutputTokens = 1024
)

type detailResponse struct {
	Detail string `json:"detail"`
}

// ListDevicesHandler returns the authenticated requester's devices.
func (s *Server) ListDevicesHandler(c echo.Context) error {
	req := requesterFrom(c)
	if !req.Authenticated {
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: "unauthorized"})
	}
	devs := s.directory.ListByOwner(req.UserID)
	if devs == nil {
		devs = []*devices.Device{}
	}
	return c.JSON(http.StatusOK, devs)
}

// DeviceEnergyHandler resolves a snapshot for one device, live when the
// deployment mode allows it and from cache otherwise.
func (s *Server) DeviceEnergyHandler(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "device id inválido"})
	}

	req := requesterFrom(c)
	res, err := s.resolver.Resolve(c.Request().Context(), req, id, s.allowLiveReads())
	if err != nil {
		return energyErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// LatestCachedHandler returns the most recently ingested snapshot for a
// device, verbatim, or 404 when nothing recent exists.
func (s *Server) LatestCachedHandler(c echo.Context) error {
	id := c.Param("id")
	snap, ok := s.cache.Get(energy.DeviceKey(id))
	if !ok {
		return c.JSON(http.StatusNotFound, detailResponse{Detail: "sem dados recentes para este device_id"})
	}
	return c.JSON(http.StatusOK, snap)
}

// IngestHandler accepts an externally pushed snapshot guarded by the shared
// secret. It fails closed: no configured secret means no writes at all.
func (s *Server) IngestHandler(c echo.Context) error {
	secret := s.ingestSecretValue()
	if secret == "" {
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "INGEST_SECRET não configurado no servidor."})
	}
	if c.Request().Header.Get("X-Api-Key") != secret {
		metrics.IngestRejected.Inc()
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: "unauthorized"})
	}

	payload := map[string]any{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "corpo JSON inválido"})
	}

	deviceID := ingestDeviceID(payload)
	s.cache.Set(energy.DeviceKey(deviceID), payload, s.ingestTTLValue())
	metrics.SnapshotsIngested.Inc()

	logger.Debug().Str("device_id", deviceID).Msg("Snapshot ingested")
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type chatRequest struct {
	Message         string   `json:"message" validate:"required"`
	DeviceID        int64    `json:"device_id" validate:"omitempty,gte=0"`
	Temperature     *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	TopP            *float64 `json:"top_p" validate:"omitempty,gt=0,lte=1"`
	TopK            *int     `json:"top_k" validate:"omitempty,gt=0"`
	MaxOutputTokens *int     `json:"max_output_tokens" validate:"omitempty,gt=0"`
	SystemPrompt    string   `json:"system_prompt"`
}

type chatResponse struct {
	Output string `json:"output"`
}

// ChatHandler answers one chat turn, feeding the model the freshest device
// status line the resolver can produce. Snapshot failures never fail the
// chat: they degrade into an "indisponível" status with the reason.
func (s *Server) ChatHandler(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "corpo JSON inválido"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Campo 'message' é obrigatório."})
	}

	requester := requesterFrom(c)
	res, err := s.resolver.Resolve(c.Request().Context(), requester, req.DeviceID, s.allowLiveReads())
	reason := ""
	if err != nil {
		res = nil
		reason = snapshotReason(err)
	}
	contextLine := energy.StatusLine(res, reason)

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.systemPrompt
	}
	systemPrompt += "\nSe o usuário perguntar sobre consumo/energia, use o STATUS abaixo."

	modelReq := chat.Request{
		SystemPrompt:    systemPrompt,
		ContextLine:     contextLine,
		Message:         req.Message,
		Temperature:     defaultTemperature,
		TopP:            defaultTopP,
		TopK:            defaultTopK,
		MaxOutputTokens: defaultMaxOutputTokens,
	}
	if req.Temperature != nil {
		modelReq.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		modelReq.TopP = *req.TopP
	}
	if req.TopK != nil {
		modelReq.TopK = *req.TopK
	}
	if req.MaxOutputTokens != nil {
		modelReq.MaxOutputTokens = *req.MaxOutputTokens
	}

	output, err := s.chatModel.Generate(c.Request().Context(), modelReq)
	if err != nil {
		metrics.ChatErrors.Inc()
		logger.Error().Err(err).Msg("Chat model call failed")
		return c.JSON(http.StatusBadGateway, detailResponse{Detail: fmt.Sprintf("Erro ao chamar Gemini: %v", err)})
	}

	metrics.ChatRequestsTotal.Inc()
	return c.JSON(http.StatusOK, chatResponse{Output: output})
}

// energyErrorResponse maps resolver errors to the HTTP taxonomy: terminal
// selection errors are 400-class, server misconfiguration 500, a surfaced
// read failure 502, a final cache miss 404.
func energyErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrDeviceUnavailable):
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Dispositivo não encontrado ou sem IP."})
	case errors.Is(err, apperrors.ErrCredentialsMissing):
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "TAPO_USER/TAPO_PASS ausentes no servidor"})
	case apperrors.IsReadError(err):
		return c.JSON(http.StatusBadGateway, detailResponse{Detail: fmt.Sprintf("Falha ao consultar P110: %v", err)})
	case errors.Is(err, apperrors.ErrNoRecentSnapshot):
		return c.JSON(http.StatusNotFound, detailResponse{Detail: "sem dados recentes para este dispositivo"})
	default:
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: err.Error()})
	}
}

// snapshotReason renders a resolver error as the reason string embedded in
// the unavailable status line.
func snapshotReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrDeviceUnavailable):
		return "Dispositivo não encontrado ou sem IP."
	case errors.Is(err, apperrors.ErrCredentialsMissing):
		return "TAPO_USER/TAPO_PASS ausentes no servidor"
	case apperrors.IsReadError(err):
		return fmt.Sprintf("Falha ao ler P110: %v", err)
	case errors.Is(err, apperrors.ErrNoRecentSnapshot):
		return "Sem snapshot recente no cache (esperado ingest na rota /tapo/ingest)."
	default:
		return err.Error()
	}
}

// ingestDeviceID extracts the device id from an ingest payload. JSON numbers
// arrive as float64; integral values keep their integer rendering so the
// cache key matches the directory's id formatting.
func ingestDeviceID(payload map[string]any) string {
	switch v := payload["device_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "default"
}
