package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/ctxutil"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/models"
)

const actorKey = "actor"

// requestContext кладёт request id и имя операции в context запроса.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
			ctx = ctxutil.WithRequestID(ctx, rid)
		}
		ctx = ctxutil.WithOp(ctx, c.Request().Method+" "+c.Path())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// observe считает запросы по маршруту. Ошибку отдаём обработчику сразу, чтобы знать итоговый код.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
		metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}

func bearer(c echo.Context) (string, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", apperr.ErrUnauthorized
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.ErrUnauthorized
	}
	return strings.TrimSpace(parts[1]), nil
}

// requireAuth проверяет токен и заново читает аккаунт: удалённый аккаунт токен не спасает.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := bearer(c)
		if err != nil {
			return err
		}
		claims, err := s.tokens.Verify(raw)
		if err != nil {
			return err
		}
		id, err := claims.AccountID()
		if err != nil {
			return apperr.ErrUnauthorized
		}
		ctx := ctxutil.WithAccountID(c.Request().Context(), id)
		acc, err := s.eng.Account(ctx, id)
		if err != nil {
			return err
		}
		if !acc.IsApproved {
			return apperr.ErrNotApproved
		}
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(actorKey, acc)
		return next(c)
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a := actor(c); a == nil || !a.IsAdmin() {
			return apperr.Forbidden("admin role required")
		}
		return next(c)
	}
}

func actor(c echo.Context) *models.Account {
	a, _ := c.Get(actorKey).(*models.Account)
	return a
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}
