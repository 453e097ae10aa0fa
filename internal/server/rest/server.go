// Package rest exposes the account service over HTTP with gin.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// AccountService is the subset of services.AccountService the handlers use.
type AccountService interface {
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Register(ctx context.Context, profile services.RegisterProfile) (*services.AuthResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, code, newPassword string) error
}

type Server struct {
	address  string
	logger   logging.Logger
	accounts AccountService
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// NewServer builds the router. gatherer may be nil, in which case /metrics
// is not mounted.
func NewServer(address string, l logging.Logger, accounts AccountService, gatherer prometheus.Gatherer) *Server {
	registerValidators()

	s := &Server{
		address:  address,
		logger:   l.With("module", "http_server"),
		accounts: accounts,
		gatherer: gatherer,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), s.recovery(), s.requestLogger())

	r.POST("/login", s.login)
	r.POST("/register", s.register)
	r.GET("/logout", s.logout)
	r.POST("/recuperar-contrasena", s.requestPasswordReset)
	r.POST("/cambiar-contrasena", s.completePasswordReset)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-stopped
	return nil
}
