// Package status serves the pipeline's read-only HTTP surface: liveness,
// a snapshot of the judges and the arbiter, committed markers and metrics.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chinyancb/sbifx/internal/arbiter"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/metrics"
	"github.com/chinyancb/sbifx/internal/position"
)

type JudgeView interface {
	Family() indicator.Family
	Latest() position.Call
	History() []position.Call
}

type ArbiterView interface {
	Status() arbiter.Status
	Decisions() []position.Decision
}

type Server struct {
	Router *gin.Engine

	judges  []JudgeView
	arb     ArbiterView
	markers *position.Markers
	version string
	started time.Time
	log     zerolog.Logger
}

func NewServer(arb ArbiterView, markers *position.Markers, version string, log zerolog.Logger, judges ...JudgeView) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Router:  r,
		judges:  judges,
		arb:     arb,
		markers: markers,
		version: version,
		started: time.Now(),
		log:     log.With().Str("component", "status").Logger(),
	}
	r.Use(s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.health)
	s.Router.GET("/status", s.status)
	s.Router.GET("/positions", s.positions)
	s.Router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
