package data

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"orb-backtest/services/market"
)

// CSVProvider reads SYMBOL.csv files from a directory. Expected columns:
// timestamp_ms,open,high,low,close,volume with an optional header row.
type CSVProvider struct {
	Dir string
	Log *zap.Logger
}

func NewCSVProvider(dir string, log *zap.Logger) *CSVProvider {
	return &CSVProvider{Dir: dir, Log: log}
}

func (p *CSVProvider) FetchBars(_ context.Context, symbol string, start, end time.Time, _ time.Duration) ([]market.Bar, error) {
	path := filepath.Join(p.Dir, symbol+".csv")
	bars, err := LoadCSVFile(path, p.Log)
	if err != nil {
		return nil, err
	}
	if start.IsZero() && end.IsZero() {
		return bars, nil
	}
	out := bars[:0:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// LoadCSVFile parses, sorts and deduplicates an OHLCV file. Rows that fail
// to parse are skipped rather than failing the file; non-monotonic input
// is repaired by the sort, identical timestamps keep the last row.
func LoadCSVFile(path string, log *zap.Logger) ([]market.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var bars []market.Bar
	line := 0
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line++
			skipped++
			continue
		}
		line++
		if len(rec) < 6 {
			skipped++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(rec[0]), "\uFEFF"), "timestamp") ||
			line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp_ms") {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(rec[0]), "\uFEFF"), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		vals := make([]float64, 5)
		ok := true
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, market.Bar{
			Time:   time.UnixMilli(ts).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	uniq := bars[:0]
	for _, b := range bars {
		if len(uniq) > 0 && uniq[len(uniq)-1].Time.Equal(b.Time) {
			uniq[len(uniq)-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	bars = uniq

	if log != nil {
		log.Info("bars loaded from csv",
			zap.String("path", path),
			zap.Int("bars", len(bars)),
			zap.Int("skipped_rows", skipped))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no parseable bars in %s", path)
	}
	return bars, nil
}
