// Package data supplies bar series to the engine. Every provider honors
// the same contract: strictly increasing UTC timestamps, duplicates
// removed, gaps permitted.
package data

import (
	"context"
	"time"

	"orb-backtest/services/market"
)

// Provider fetches one symbol's ordered bar series.
type Provider interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]market.Bar, error)
}
