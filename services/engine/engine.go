// Package engine orchestrates the event-driven backtest: per instrument it
// builds the indicator series and all opening ranges up front, then walks
// bars strictly in chronological order through governance, breakout
// detection and the position lifecycle. Instruments are independent and
// run in parallel; within one instrument nothing is reordered.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orb-backtest/services/breakout"
	"orb-backtest/services/config"
	"orb-backtest/services/factors"
	"orb-backtest/services/governance"
	"orb-backtest/services/market"
	"orb-backtest/services/openrange"
	"orb-backtest/services/scoring"
	"orb-backtest/services/trade"
)

// InstrumentResult is one symbol's complete simulation output.
type InstrumentResult struct {
	Symbol         string
	Trades         []*trade.Position
	Ranges         []*openrange.Range
	ORValid        int
	ORInvalid      int
	BlockedSignals int
	Rejected       int
}

// Result is the terminal aggregate across instruments.
type Result struct {
	JobID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Instruments []*InstrumentResult
	Skipped     []string // symbols that failed to simulate
	Metrics     Metrics
	Equity      []EquityPoint
}

type Engine struct {
	cfg *config.Config
	log *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Run simulates every configured symbol over its bar series. The config is
// validated before any bar is touched; a validation failure fails the run.
// A failure inside one instrument only removes that instrument from the
// aggregate.
func (e *Engine) Run(ctx context.Context, bars map[string][]market.Bar) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		JobID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	e.log.Info("backtest starting",
		zap.String("job_id", res.JobID),
		zap.Int("symbols", len(e.cfg.Symbols)))

	results := make([]*InstrumentResult, len(e.cfg.Symbols))
	errs := make([]error, len(e.cfg.Symbols))

	workers := e.cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for idx, symbol := range e.cfg.Symbols {
		idx, symbol := idx, symbol
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ir, err := e.runInstrument(symbol, bars[symbol])
			mu.Lock()
			results[idx] = ir
			errs[idx] = err
			mu.Unlock()
			return nil // instrument errors do not cancel siblings
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for idx, symbol := range e.cfg.Symbols {
		if errs[idx] != nil {
			e.log.Error("instrument skipped",
				zap.String("symbol", symbol),
				zap.Error(errs[idx]))
			res.Skipped = append(res.Skipped, symbol)
			continue
		}
		res.Instruments = append(res.Instruments, results[idx])
	}

	res.Metrics = computeMetrics(res.Instruments)
	res.Equity = buildEquityCurve(res.Instruments)
	res.FinishedAt = time.Now().UTC()

	e.log.Info("backtest finished",
		zap.String("job_id", res.JobID),
		zap.Int("trades", res.Metrics.TotalTrades),
		zap.Int("skipped", len(res.Skipped)),
		zap.Float64("total_r", res.Metrics.TotalR),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// indicatorConfig gathers every period the run's components read.
func (e *Engine) indicatorConfig() market.IndicatorConfig {
	periods := map[int]bool{e.cfg.OpenRange.ATRPeriod: true}
	if e.cfg.Breakout.UseATRBuffer {
		periods[e.cfg.Breakout.ATRPeriod] = true
	}
	if e.cfg.Trade.StopMode == trade.StopATRCapped {
		periods[e.cfg.Trade.ATRPeriod] = true
	}
	var atrPeriods []int
	for p := range periods {
		if p > 0 {
			atrPeriods = append(atrPeriods, p)
		}
	}
	sort.Ints(atrPeriods)
	return market.IndicatorConfig{
		ATRPeriods:   atrPeriods,
		ADXPeriod:    e.cfg.Factors.ADX.Period,
		VolumeLookup: e.cfg.Factors.RelativeVolume.Lookback,
	}
}

// runInstrument is the sequential per-symbol control loop. Bars are never
// reordered; governance day transitions and position state rely on that.
func (e *Engine) runInstrument(symbol string, bars []market.Bar) (ir *InstrumentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			ir = nil
			err = fmt.Errorf("instrument %s panicked: %v", symbol, r)
		}
	}()

	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}
	log := e.log.With(zap.String("symbol", symbol))

	series, err := market.NewSeries(symbol, bars, e.indicatorConfig())
	if err != nil {
		return nil, err
	}

	orBuilder := openrange.NewBuilder(e.cfg.OpenRange, e.cfg.IntervalMinutes, log)
	scorer := scoring.NewScorer(e.cfg.Scoring, factors.Build(e.cfg.Factors), log)
	detector := breakout.NewDetector(e.cfg.Breakout, scorer)
	manager := trade.NewManager(e.cfg.Trade, log)
	gov := governance.NewController(e.cfg.Governance, log)

	ranges := orBuilder.BuildAll(series)

	ir = &InstrumentResult{Symbol: symbol}
	for _, day := range series.Days {
		r := ranges[day.Date]
		ir.Ranges = append(ir.Ranges, r)
		if r.IsValid() {
			ir.ORValid++
		} else {
			ir.ORInvalid++
		}
	}

	var open *trade.Position
	var currentDay time.Time

	for i := range series.Bars {
		bar := series.Bars[i]
		date := bar.Date()
		if !date.Equal(currentDay) {
			currentDay = date
			gov.ResetForNewDay(date, series.DayOf(i).SessionStart(series))
		}

		if open != nil {
			if closed := manager.Update(open, bar); closed {
				gov.RecordPositionClosed(open)
				ir.Trades = append(ir.Trades, open)
				open = nil
			}
		}
		if open != nil {
			continue
		}

		if ok, _ := gov.CanTakeSignal(bar.Time); !ok {
			continue
		}
		sig := detector.Detect(series, i, ranges[date])
		if sig == nil {
			continue
		}
		gov.RecordSignal()

		pos, rej := manager.Open(sig, ranges[date], series)
		if rej != nil {
			ir.Rejected++
			log.Debug("signal rejected",
				zap.Time("time", bar.Time),
				zap.String("reason", rej.Reason))
			continue
		}
		open = pos
	}

	if open != nil {
		manager.ForceClose(open, series.Bars[len(series.Bars)-1])
		gov.RecordPositionClosed(open)
		ir.Trades = append(ir.Trades, open)
	}

	ir.BlockedSignals = gov.BlockedSignals()
	log.Info("instrument simulated",
		zap.Int("bars", len(series.Bars)),
		zap.Int("trades", len(ir.Trades)),
		zap.Int("blocked_signals", ir.BlockedSignals),
		zap.Int("rejected", ir.Rejected))
	return ir, nil
}
