package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"whaleflow/internal/metrics"
	"whaleflow/internal/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func metricsHandler() gin.HandlerFunc {
	handler := metrics.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// handleWhales serves the aggregated whale list. With ?address= it performs
// a live, uncached lookup of a single account instead.
func (s *Server) handleWhales(c *gin.Context) {
	if address := strings.TrimSpace(c.Query("address")); address != "" {
		s.handleWhaleLookup(c, address)
		return
	}

	whales, lastUpdated, err := s.whales.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "whale data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        whales,
		"lastUpdated": lastUpdated,
	})
}

func (s *Server) handleWhaleLookup(c *gin.Context, address string) {
	whale, err := s.whales.Lookup(c.Request.Context(), address)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "lookup unavailable"})
	default:
		c.JSON(http.StatusOK, whale)
	}
}

func (s *Server) handleMarkets(c *gin.Context) {
	symbols, lastUpdated, err := s.markets.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        symbols,
		"lastUpdated": lastUpdated,
	})
}
