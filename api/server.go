package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"niftybt/backtest"
	"niftybt/options"
)

// Server exposes the backtest engine over HTTP.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	runs     *RunManager
	premiums *options.Source
}

func NewServer(bt *backtest.Engine, premiums *options.Source, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine:   engine,
		runs:     NewRunManager(bt),
		premiums: premiums,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	handler := NewHandler(s.runs, s.premiums)

	api := s.engine.Group("/api")
	{
		api.POST("/backtests", handler.CreateBacktest)
		api.GET("/backtests", handler.ListBacktests)
		api.GET("/backtests/:id", handler.GetBacktest)
		api.GET("/backtests/:id/chart", handler.GetBacktestChart)

		api.GET("/strategies", handler.GetStrategies)
		api.GET("/status", handler.GetStatus)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (s *Server) Start() error {
	log.Printf("[api] serving on http://localhost%s\n", s.server.Addr)
	log.Println("[api] endpoints:")
	log.Println("  POST /api/backtests           - submit a backtest run")
	log.Println("  GET  /api/backtests           - list submitted runs")
	log.Println("  GET  /api/backtests/:id       - run status and result")
	log.Println("  GET  /api/backtests/:id/chart - equity curve SVG")
	log.Println("  GET  /api/strategies          - available strategies")
	log.Println("  GET  /api/status              - service status")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests; in-flight runs keep executing.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log.Printf("[api] %s %s %d %v\n", c.Request.Method, path, status, latency)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
