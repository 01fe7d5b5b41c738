package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cfg "github.com/maastricht-university/talktime/config"
)

type Server struct {
	cfg    *cfg.Root
	proc   Processor
	log    logrus.FieldLogger
	engine *gin.Engine
	srv    *http.Server
}

func New(c *cfg.Root, proc Processor, log logrus.FieldLogger) *Server {
	engine := gin.New()
	engine.MaxMultipartMemory = 32 << 20

	s := &Server{cfg: c, proc: proc, log: log, engine: engine}
	engine.Use(RequestLogger(log), gin.CustomRecoveryWithWriter(io.Discard, s.onPanic), cors.Default())
	s.routes()

	s.srv = &http.Server{
		Addr:         c.Server.Addr,
		Handler:      engine,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.POST("/process", s.handleProcess)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) onPanic(c *gin.Context, recovered any) {
	log := s.log.WithFields(logrus.Fields{
		"request_id": requestID(c),
		"stack":      string(debug.Stack()),
	})
	s.fail(c, log, fmt.Errorf("%w: %v", errPanic, recovered))
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.WithField("addr", s.srv.Addr).Info("listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grace := s.cfg.Server.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.log.Info("shutting down")
		return s.srv.Shutdown(sctx)
	})
	return g.Wait()
}
