package main

import (
	"strings"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// actorKey holds the authenticated data.Actor in the echo context.
const actorKey = "actor"

// requestContext copies the request id into the request context so service
// logs carry it.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), rid)))
			}
			return next(c)
		}
	}
}

// requestLogger logs one line per request.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// render now so the logged status is the one sent
				c.Error(err)
			}

			status := c.Response().Status
			event := log.Info()
			switch {
			case status >= 500:
				event = log.Error()
			case status >= 400:
				event = log.Warn()
			}
			event.
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("uri", c.Request().RequestURI).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("req_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("ip", c.RealIP()).
				Msg("http")
			return nil
		}
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate requires a valid access token for an active user.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return apperror.Unauthorized("Not authenticated")
		}
		u, err := s.accounts.Authenticate(c.Request().Context(), token)
		if err != nil {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return err
		}
		c.Set(actorKey, u.Actor())
		return next(c)
	}
}

// optionalAuth attaches the actor when a valid token is sent and carries on
// anonymously otherwise.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := bearerToken(c); token != "" {
			if u, err := s.accounts.Authenticate(c.Request().Context(), token); err == nil {
				c.Set(actorKey, u.Actor())
			}
		}
		return next(c)
	}
}

// requireLandlord must run after authenticate.
func requireLandlord(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, ok := actorFrom(c)
		if !ok {
			return apperror.Unauthorized("Not authenticated")
		}
		if !a.IsLandlord() {
			return apperror.Forbidden("Only landlords can perform this action")
		}
		return next(c)
	}
}

func actorFrom(c echo.Context) (data.Actor, bool) {
	a, ok := c.Get(actorKey).(data.Actor)
	return a, ok
}

// mustActor returns the actor set by authenticate. Only use it on
// authenticated routes.
func mustActor(c echo.Context) data.Actor {
	a, _ := actorFrom(c)
	return a
}
