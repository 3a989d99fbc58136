// Command server exposes the backtest engine over HTTP: submit a run
// against the configured bar source, poll results by job id.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"orb-backtest/services/config"
	"orb-backtest/services/data"
	"orb-backtest/services/engine"
	"orb-backtest/services/market"
)

// runRequest narrows a run to a symbol set and date range; everything
// else comes from the server's base config.
type runRequest struct {
	Symbols []string `json:"symbols"`
	Start   string   `json:"start"` // YYYY-MM-DD
	End     string   `json:"end"`
}

type server struct {
	cfg      *config.Config
	provider data.Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	results map[string]*engine.Result
}

func newServer(cfg *config.Config, provider data.Provider, logger *zap.Logger) *server {
	return &server{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		results:  make(map[string]*engine.Result),
	}
}

func (s *server) routes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/backtest", s.handleRun)
		api.GET("/backtest/:job_id", s.handleResult)
	}
	r.GET("/health", s.handleHealth)
}

func (s *server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runCfg := *s.cfg
	if len(req.Symbols) > 0 {
		runCfg.Symbols = req.Symbols
	}
	if err := runCfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := parseDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	interval := time.Duration(runCfg.IntervalMinutes) * time.Minute
	bars := make(map[string][]market.Bar, len(runCfg.Symbols))
	for _, sym := range runCfg.Symbols {
		bs, err := s.provider.FetchBars(ctx, sym, start, end, interval)
		if err != nil {
			s.logger.Warn("bars unavailable",
				zap.String("symbol", sym), zap.Error(err))
			continue
		}
		bars[sym] = bs
	}

	result, err := engine.New(&runCfg, s.logger).Run(ctx, bars)
	if err != nil {
		s.logger.Error("backtest request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.results[result.JobID] = result
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"job_id":  result.JobID,
		"metrics": result.Metrics,
		"skipped": result.Skipped,
	})
}

func (s *server) handleResult(c *gin.Context) {
	jobID := c.Param("job_id")
	s.mu.RLock()
	result, ok := s.results[jobID]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":       result.JobID,
		"started_at":   result.StartedAt,
		"finished_at":  result.FinishedAt,
		"metrics":      result.Metrics,
		"equity_curve": result.Equity,
		"skipped":      result.Skipped,
	})
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to YAML config")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bar provider", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := newServer(cfg, provider, logger)
	srv.routes(router)

	httpSrv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		logger.Info("http server starting", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func buildProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (data.Provider, error) {
	switch cfg.Data.Source {
	case "csv", "":
		return data.NewCSVProvider(cfg.Data.CSVDir, logger), nil
	case "clickhouse":
		dsn := cfg.Data.ClickHouseDSN
		if env := os.Getenv("CLICKHOUSE_ADDR"); env != "" {
			dsn = env
		}
		return data.NewClickHouseProvider(ctx, data.ClickHouseOptions{
			Addr:     dsn,
			Database: cfg.Data.Database,
			Table:    cfg.Data.Table,
			Username: os.Getenv("CH_USER"),
			Password: os.Getenv("CH_PASSWORD"),
		}, logger)
	case "binance":
		return data.NewBinanceProvider(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"), logger), nil
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
}
