// Package export writes run outputs for downstream tooling: closed trades,
// opening ranges and the equity curve as CSV, plus a full JSON result.
// Money and R columns go through decimal rounding at this boundary only;
// engine internals stay float64.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"orb-backtest/services/engine"
	"orb-backtest/services/trade"
)

const timeLayout = "2006-01-02 15:04:05"

func price(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}

func rmult(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}

// WriteTradesCSV emits one row per closed trade, ordered as produced by
// the engine (exit time across the portfolio).
func WriteTradesCSV(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"trade_id", "symbol", "direction",
		"entry_time", "entry_price", "exit_time", "exit_price", "exit_reason",
		"quantity", "initial_stop", "final_stop", "realized_r", "mfe_r", "mae_r",
		"partial_fills", "long_score", "short_score",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, ir := range res.Instruments {
		for _, p := range ir.Trades {
			row := []string{
				p.ID,
				p.Symbol,
				p.Direction.String(),
				p.EntryTime.UTC().Format(timeLayout),
				price(p.EntryPrice),
				p.ExitTime.UTC().Format(timeLayout),
				price(p.ExitPrice),
				string(p.ExitReason),
				price(p.Quantity),
				price(p.InitialStop),
				price(p.Stop),
				rmult(p.RealizedR),
				rmult(p.MFE),
				rmult(p.MAE),
				fmt.Sprintf("%d", targetFills(p)),
				rmult(p.Score.Long),
				rmult(p.Score.Short),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func targetFills(p *trade.Position) int {
	n := 0
	for _, f := range p.Fills {
		switch f.Reason {
		case trade.ExitT1, trade.ExitT2, trade.ExitRunner, trade.ExitTarget:
			n++
		}
	}
	return n
}

// WriteEquityCSV emits the cumulative-R curve, one row per closed trade.
func WriteEquityCSV(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create equity file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"exit_time", "symbol", "trade_r", "cumulative_r"}); err != nil {
		return err
	}
	for _, pt := range res.Equity {
		row := []string{
			pt.Time.UTC().Format(timeLayout),
			pt.Symbol,
			rmult(pt.TradeR),
			rmult(pt.CumulativeR),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteRangesCSV emits one row per (symbol, day) opening range.
func WriteRangesCSV(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ranges file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"symbol", "date", "start", "end", "duration_min",
		"or_high", "or_low", "or_width", "validity", "atr", "normalized_vol", "bars",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, ir := range res.Instruments {
		for _, r := range ir.Ranges {
			row := []string{
				r.Symbol,
				r.Date.Format("2006-01-02"),
				r.Start.UTC().Format(timeLayout),
				r.End.UTC().Format(timeLayout),
				fmt.Sprintf("%d", int(r.Duration.Minutes())),
				price(r.High),
				price(r.Low),
				price(r.Width),
				r.Validity.String(),
				price(r.ATR),
				rmult(r.NormalizedVol),
				fmt.Sprintf("%d", r.BarCount),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// resultJSON is the serializable shape of a finished run.
type resultJSON struct {
	JobID      string             `json:"job_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Skipped    []string           `json:"skipped_symbols,omitempty"`
	Metrics    engine.Metrics     `json:"metrics"`
	Trades     []tradeJSON        `json:"trades"`
	Equity     []equityJSON       `json:"equity_curve"`
	Summary    map[string]float64 `json:"summary"`
}

type tradeJSON struct {
	ID             string                `json:"trade_id"`
	Symbol         string                `json:"symbol"`
	Direction      string                `json:"direction"`
	EntryTime      time.Time             `json:"entry_time"`
	EntryPrice     decimal.Decimal       `json:"entry_price"`
	ExitTime       time.Time             `json:"exit_time"`
	ExitPrice      decimal.Decimal       `json:"exit_price"`
	ExitReason     string                `json:"exit_reason"`
	Quantity       decimal.Decimal       `json:"quantity"`
	InitialStop    decimal.Decimal       `json:"initial_stop"`
	RealizedR      decimal.Decimal       `json:"realized_r"`
	MFE            decimal.Decimal       `json:"mfe_r"`
	MAE            decimal.Decimal       `json:"mae_r"`
	IsSecondChance bool                  `json:"is_second_chance"`
	LongScore      decimal.Decimal       `json:"long_score"`
	ShortScore     decimal.Decimal       `json:"short_score"`
	Factors        map[string]factorJSON `json:"factors,omitempty"`
	Fills          []fillJSON            `json:"fills"`
}

type factorJSON struct {
	Long  bool    `json:"long"`
	Short bool    `json:"short"`
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

type fillJSON struct {
	Time     time.Time       `json:"time"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
	R        decimal.Decimal `json:"r"`
}

type equityJSON struct {
	Time        time.Time       `json:"time"`
	Symbol      string          `json:"symbol"`
	CumulativeR decimal.Decimal `json:"cumulative_r"`
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

// WriteResultJSON serializes the whole run, trades and curve included.
func WriteResultJSON(path string, res *engine.Result) error {
	out := resultJSON{
		JobID:      res.JobID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Skipped:    res.Skipped,
		Metrics:    res.Metrics,
		Summary: map[string]float64{
			"win_rate":      res.Metrics.WinRate,
			"expectancy":    res.Metrics.Expectancy,
			"profit_factor": res.Metrics.ProfitFactor,
			"total_r":       res.Metrics.TotalR,
		},
	}
	for _, ir := range res.Instruments {
		for _, p := range ir.Trades {
			tj := tradeJSON{
				ID:             p.ID,
				Symbol:         p.Symbol,
				Direction:      p.Direction.String(),
				EntryTime:      p.EntryTime,
				EntryPrice:     dec(p.EntryPrice),
				ExitTime:       p.ExitTime,
				ExitPrice:      dec(p.ExitPrice),
				ExitReason:     string(p.ExitReason),
				Quantity:       dec(p.Quantity),
				InitialStop:    dec(p.InitialStop),
				RealizedR:      dec(p.RealizedR),
				MFE:            dec(p.MFE),
				MAE:            dec(p.MAE),
				IsSecondChance: p.IsSecondChance,
				LongScore:      dec(p.Score.Long),
				ShortScore:     dec(p.Score.Short),
			}
			if len(p.Score.Signals) > 0 {
				tj.Factors = make(map[string]factorJSON, len(p.Score.Signals))
				for k, s := range p.Score.Signals {
					tj.Factors[k.String()] = factorJSON{
						Long:  s.Long,
						Short: s.Short,
						Value: s.Value,
						Valid: s.Valid,
					}
				}
			}
			for _, fl := range p.Fills {
				tj.Fills = append(tj.Fills, fillJSON{
					Time:     fl.Time,
					Price:    dec(fl.Price),
					Quantity: dec(fl.Quantity),
					Reason:   string(fl.Reason),
					R:        dec(fl.R),
				})
			}
			out.Trades = append(out.Trades, tj)
		}
	}
	for _, pt := range res.Equity {
		out.Equity = append(out.Equity, equityJSON{
			Time:        pt.Time,
			Symbol:      pt.Symbol,
			CumulativeR: dec(pt.CumulativeR),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
