package main

import (
	"errors"
	"net/http"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/labstack/echo/v4"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  apperror.Kind `json:"error"`
	Detail string        `json:"detail"`
}

const internalDetail = "An unexpected error occurred"

// httpErrorHandler renders application errors as {"error", "detail"} with
// the status of their kind. Internal causes are logged, never returned.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := renderError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error().Err(err).
			Str("method", c.Request().Method).
			Str("route", c.Path()).
			Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn().Err(err).Msg("write error response")
	}
}

func renderError(err error) (int, errorResponse) {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		status := ae.HTTPStatus()
		if ae.Kind == apperror.KindInternal {
			return status, errorResponse{Error: ae.Kind, Detail: internalDetail}
		}
		return status, errorResponse{Error: ae.Kind, Detail: ae.Detail}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		detail := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			detail = msg
		}
		if he.Code >= http.StatusInternalServerError {
			detail = internalDetail
		}
		return he.Code, errorResponse{Error: kindForStatus(he.Code), Detail: detail}
	}

	return http.StatusInternalServerError, errorResponse{Error: apperror.KindInternal, Detail: internalDetail}
}

func kindForStatus(status int) apperror.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperror.KindValidation
	case http.StatusUnauthorized:
		return apperror.KindUnauthorized
	case http.StatusForbidden:
		return apperror.KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperror.KindNotFound
	case http.StatusConflict:
		return apperror.KindConflict
	case http.StatusTooManyRequests:
		return apperror.KindRateLimited
	}
	return apperror.KindInternal
}
