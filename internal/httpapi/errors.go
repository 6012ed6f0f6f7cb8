package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/observability"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized), errors.Is(err, apperr.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicate), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleError — единая точка ответа на ошибки; детали 5xx клиенту не отдаём.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ctx := c.Request().Context()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
		if he.Code >= 500 {
			metrics.HandlerErrors.Inc()
			observability.CaptureCtx(ctx, err)
		}
		_ = c.JSON(he.Code, errorBody{Error: code, Message: http.StatusText(he.Code)})
		return
	}

	status := statusFor(err)
	body := errorBody{Error: apperr.Code(err), Message: apperr.Message(err)}
	if status >= 500 {
		metrics.HandlerErrors.Inc()
		observability.CaptureCtx(ctx, err)
		logging.For(ctx, s.log).Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		body = errorBody{Error: "INTERNAL", Message: "Server error."}
		if errors.Is(err, apperr.ErrIO) {
			body = errorBody{Error: apperr.Code(err), Message: apperr.Message(err)}
		}
	}
	_ = c.JSON(status, body)
}
