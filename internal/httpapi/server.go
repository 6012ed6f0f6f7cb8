// Package httpapi exposes the workflow engine over JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/auth"
	"github.com/Krishna180104/cse-leave/internal/ctxutil"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/workflow"
)

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Files — каталог загрузок и писем.
type Files interface {
	SaveImage(original string, r io.Reader) (string, error)
	Remove(path string) error
	Exists(path string) bool
	Path(name string) string
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	Location       *time.Location
	Department     string
}

type Deps struct {
	Engine  *workflow.Engine
	Tokens  TokenVerifier
	Files   Files
	DB      Pinger
	Log     *zap.Logger
	Options Options
}

type Server struct {
	e      *echo.Echo
	eng    *workflow.Engine
	tokens TokenVerifier
	files  Files
	db     Pinger
	log    *zap.Logger
	opts   Options
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Options.MaxUploadBytes <= 0 {
		d.Options.MaxUploadBytes = 5 << 20
	}
	if d.Options.Location == nil {
		d.Options.Location = time.UTC
	}
	s := &Server{
		e:      echo.New(),
		eng:    d.Engine,
		tokens: d.Tokens,
		files:  d.Files,
		db:     d.DB,
		log:    d.Log,
		opts:   d.Options,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Validator = newValidator()
	s.e.HTTPErrorHandler = s.handleError

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestID())
	if len(d.Options.CORSOrigins) > 0 {
		s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: d.Options.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	// запас сверху на поля multipart-формы
	s.e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (d.Options.MaxUploadBytes+(64<<10))/1024)))
	s.e.Use(s.requestContext, s.observe)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.health)
	s.e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := s.e.Group("/api")
	api.POST("/accounts", s.register)
	api.POST("/sessions", s.login)

	authed := api.Group("", s.requireAuth)
	authed.GET("/me", s.me)

	lr := authed.Group("/leave-requests")
	lr.POST("", s.submitLeave)
	lr.GET("/mine", s.myLeaves)
	lr.GET("/:id/document", s.document)
	lr.GET("", s.listLeaves, s.requireAdmin)
	lr.GET("/pending", s.pendingLeaves, s.requireAdmin)
	lr.PUT("/decisions", s.bulkDecide, s.requireAdmin)
	lr.PUT("/:id/decision", s.decide, s.requireAdmin)
	lr.DELETE("", s.purgeLeaves, s.requireAdmin)

	adm := authed.Group("/admin", s.requireAdmin)
	adm.GET("/accounts", s.listAccounts)
	adm.GET("/accounts/pending", s.pendingAccounts)
	adm.GET("/accounts/search", s.searchAccounts)
	adm.POST("/accounts/bulk-delete", s.bulkDeleteAccounts)
	adm.PUT("/accounts/:id/approve", s.approveAccount)
	adm.DELETE("/accounts/:id/signup", s.rejectAccount)
	adm.DELETE("/accounts/:id", s.deleteAccount)
	adm.GET("/stats", s.stats)
	adm.GET("/export", s.export)
}

func (s *Server) Handler() http.Handler { return s.e }

// Run слушает addr до отмены ctx, затем аккуратно гасит сервер.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.e.Shutdown(shCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

const healthTimeout = 800 * time.Millisecond

// health — пинг БД с коротким таймаутом.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := ctxutil.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	t0 := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		return c.String(http.StatusServiceUnavailable, "db not ok")
	}
	metrics.ObserveDBPing(time.Since(t0))
	return c.String(http.StatusOK, "ok")
}
