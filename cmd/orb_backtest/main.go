// Command orb_backtest runs an opening-range breakout backtest from a
// YAML configuration and a bar source, then writes trade, range and
// equity exports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"orb-backtest/services/config"
	"orb-backtest/services/data"
	"orb-backtest/services/engine"
	"orb-backtest/services/export"
	"orb-backtest/services/market"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (required)")
		source     = flag.String("source", "", "Bar source override: csv, clickhouse or binance")
		csvDir     = flag.String("csv-dir", "", "Directory with SYMBOL.csv files (csv source)")
		symbols    = flag.String("symbols", "", "Comma-separated symbol override")
		startStr   = flag.String("start", "", "Range start, YYYY-MM-DD (clickhouse/binance sources)")
		endStr     = flag.String("end", "", "Range end, YYYY-MM-DD (clickhouse/binance sources)")
		outputDir  = flag.String("output", "results", "Output directory for exports")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// .env is optional; the environment may already be populated
	_ = godotenv.Load()

	zcfg := zap.NewDevelopmentConfig()
	if !*debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		flag.Usage()
		logger.Fatal("-config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *symbols != "" {
		cfg.Symbols = splitSymbols(*symbols)
	}
	if *source != "" {
		cfg.Data.Source = *source
	}
	if *csvDir != "" {
		cfg.Data.CSVDir = *csvDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		logger.Fatal("invalid date range", zap.Error(err))
	}

	ctx := context.Background()
	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bar provider", zap.Error(err))
	}

	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	bars := make(map[string][]market.Bar, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		bs, err := provider.FetchBars(ctx, sym, start, end, interval)
		if err != nil {
			logger.Warn("bars unavailable, symbol will be skipped",
				zap.String("symbol", sym), zap.Error(err))
			continue
		}
		bars[sym] = bs
	}

	result, err := engine.New(cfg, logger).Run(ctx, bars)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	if err := writeExports(*outputDir, result); err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}

	m := result.Metrics
	logger.Info("run summary",
		zap.String("job_id", result.JobID),
		zap.Int("trades", m.TotalTrades),
		zap.Float64("win_rate", m.WinRate),
		zap.Float64("expectancy", m.Expectancy),
		zap.Float64("profit_factor", m.ProfitFactor),
		zap.Float64("total_r", m.TotalR),
		zap.Int("or_valid", m.ORValid),
		zap.Int("or_invalid", m.ORInvalid),
		zap.Int("blocked_signals", m.BlockedSignals),
		zap.Int("instruments_skipped", len(result.Skipped)))
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return start, end, fmt.Errorf("parse -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return start, end, fmt.Errorf("parse -end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return start, end, fmt.Errorf("-end must be after -start")
	}
	return start, end, nil
}

func buildProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (data.Provider, error) {
	switch cfg.Data.Source {
	case "csv", "":
		if cfg.Data.CSVDir == "" {
			return nil, fmt.Errorf("csv source needs data.csv_dir or -csv-dir")
		}
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

func writeExports(dir string, result *engine.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := export.WriteTradesCSV(filepath.Join(dir, "trades.csv"), result); err != nil {
		return err
	}
	if err := export.WriteEquityCSV(filepath.Join(dir, "equity.csv"), result); err != nil {
		return err
	}
	if err := export.WriteRangesCSV(filepath.Join(dir, "ranges.csv"), result); err != nil {
		return err
	}
	return export.WriteResultJSON(filepath.Join(dir, "result.json"), result)
}
