// Package server exposes the aggregated whale and market data over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whaleflow/config"
	"whaleflow/internal/service"
	"whaleflow/logger"
)

// Server hosts the Gin-powered JSON API.
type Server struct {
	cfg        config.ServerConfig
	whales     *service.WhaleService
	markets    *service.MarketService
	log        *logger.Log
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, whales *service.WhaleService, markets *service.MarketService) *Server {
	return &Server{
		cfg:     cfg,
		whales:  whales,
		markets: markets,
		log:     logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	log := s.log.WithComponent("http_server")
	log.WithFields(logger.Fields{"address": s.cfg.Address}).Info("starting http server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() *gin.Engine {
	if config.IsProductionLike(config.AppEnvironment()) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(s.log))
	if err := router.SetTrustedProxies(nil); err != nil {
		s.log.WithComponent("http_server").WithError(err).Warn("failed to clear trusted proxies")
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", metricsHandler())

	v1 := router.Group("/v1", noStore())
	v1.GET("/whales", s.handleWhales)
	v1.GET("/markets", s.handleMarkets)

	return router
}
