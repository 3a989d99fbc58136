package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"orb-backtest/services/market"
)

const binancePageLimit = 1000

// BinanceProvider fetches historical klines for backtest input. Public
// kline endpoints work without credentials; keys are only passed through
// when present.
type BinanceProvider struct {
	client *binance.Client
	log    *zap.Logger
}

func NewBinanceProvider(apiKey, secretKey string, log *zap.Logger) *BinanceProvider {
	return &BinanceProvider{client: binance.NewClient(apiKey, secretKey), log: log}
}

func (p *BinanceProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]market.Bar, error) {
	intervalName := fmt.Sprintf("%dm", int(interval.Minutes()))

	var bars []market.Bar
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for cursor < endMs {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(intervalName).
			StartTime(cursor).
			EndTime(endMs).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bars = append(bars, market.Bar{
				Time:   time.UnixMilli(k.OpenTime).UTC(),
				Open:   parseFloat(k.Open),
				High:   parseFloat(k.High),
				Low:    parseFloat(k.Low),
				Close:  parseFloat(k.Close),
				Volume: parseFloat(k.Volume),
			})
		}
		next := klines[len(klines)-1].OpenTime + int64(interval/time.Millisecond)
		if next <= cursor {
			break
		}
		cursor = next
	}

	// paging can overlap on the seam; keep the series strictly increasing
	uniq := bars[:0]
	for _, b := range bars {
		if len(uniq) > 0 && !b.Time.After(uniq[len(uniq)-1].Time) {
			continue
		}
		uniq = append(uniq, b)
	}
	bars = uniq

	if p.log != nil {
		p.log.Info("bars loaded from binance",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)))
	}
	return bars, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
