package data

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"orb-backtest/services/market"
)

// ClickHouseProvider reads bars from a klines table, ordered by open time.
// The schema matches the ingestion pipeline: one row per (symbol,
// interval, ts) with float64 OHLCV columns.
type ClickHouseProvider struct {
	conn     clickhouse.Conn
	database string
	table    string
	log      *zap.Logger
}

type ClickHouseOptions struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

func NewClickHouseProvider(ctx context.Context, opts ClickHouseOptions, log *zap.Logger) (*ClickHouseProvider, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseProvider{
		conn:     conn,
		database: opts.Database,
		table:    opts.Table,
		log:      log,
	}, nil
}

func (p *ClickHouseProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]market.Bar, error) {
	query := fmt.Sprintf(`
		SELECT ts, open, high, low, close, volume
		FROM %s.%s
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts < ?
		ORDER BY ts`, p.database, p.table)

	intervalName := fmt.Sprintf("%dm", int(interval.Minutes()))
	rows, err := p.conn.Query(ctx, query, symbol, intervalName, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var ts int64
		var o, h, l, c, v float64
		if err := rows.Scan(&ts, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("clickhouse scan %s: %w", symbol, err)
		}
		bars = append(bars, market.Bar{
			Time:   time.UnixMilli(ts).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows %s: %w", symbol, err)
	}
	if p.log != nil {
		p.log.Info("bars loaded from clickhouse",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)))
	}
	return bars, nil
}

func (p *ClickHouseProvider) Close() error { return p.conn.Close() }
