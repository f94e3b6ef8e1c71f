// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/votrix/tapo-energy-gateway/energy"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
)

const requesterContextKey = "requester"

// RegisterRoutes builds the echo handler tree.
func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(s.requesterMiddleware)

	healthLimiter := rate.NewLimiter(10, 20)
	ingestLimiter := rate.NewLimiter(20, 40)

	e.GET("/healthz", s.HealthCheckHandler, rateLimitMiddleware(healthLimiter))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/devices", s.ListDevicesHandler)
	e.GET("/devices/:id/energy", s.DeviceEnergyHandler)
	e.GET("/devices/:id/energy/latest-cached", s.LatestCachedHandler)
	e.POST("/tapo/ingest", s.IngestHandler, rateLimitMiddleware(ingestLimiter))

	if s.chatModel != nil {
		e.POST("/chat", s.ChatHandler)
	}

	return e
}

// HealthCheckHandler handles health check requests
func (s *Server) HealthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// requesterMiddleware derives the requester identity from the identity
// header forwarded by the upstream auth proxy. JWT verification happens
// there; an absent or malformed header means an anonymous requester.
func (s *Server) requesterMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := energy.Requester{}
		if raw := c.Request().Header.Get("X-User-ID"); raw != "" {
			uid, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && uid > 0 {
				req = energy.Requester{UserID: uid, Authenticated: true}
			}
		}
		c.Set(requesterContextKey, req)
		return next(c)
	}
}

func requesterFrom(c echo.Context) energy.Requester {
	if req, ok := c.Get(requesterContextKey).(energy.Requester); ok {
		return req
	}
	return energy.Requester{}
}

// rateLimitMiddleware wraps a handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				logger.Warn().
					Str("path", c.Path()).
					Str("remote_addr", c.RealIP()).
					Msg("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"detail": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
