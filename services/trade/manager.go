package trade

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orb-backtest/services/breakout"
	"orb-backtest/services/market"
	"orb-backtest/services/openrange"
)

type StopMode string

const (
	StopOROpposite StopMode = "or_opposite"
	StopSwing      StopMode = "swing"
	StopATRCapped  StopMode = "atr_capped"
)

type Config struct {
	Quantity   float64  `yaml:"quantity"`
	StopMode   StopMode `yaml:"stop_mode"`
	StopBuffer float64  `yaml:"stop_buffer"`

	SwingLookback int `yaml:"swing_lookback"`
	SwingPivot    int `yaml:"swing_pivot"`

	ATRCapMult float64 `yaml:"atr_cap_mult"`
	ATRPeriod  int     `yaml:"atr_period"`

	PartialsEnabled bool    `yaml:"partials_enabled"`
	T1R             float64 `yaml:"t1_r"`
	T1Pct           float64 `yaml:"t1_pct"`
	T2R             float64 `yaml:"t2_r"`
	T2Pct           float64 `yaml:"t2_pct"`
	RunnerR         float64 `yaml:"runner_r"`
	PrimaryR        float64 `yaml:"primary_r"`

	MoveBreakevenAtR float64 `yaml:"move_be_at_r"`
	BreakevenBuffer  float64 `yaml:"be_buffer"`
}

// Rejection explains why a signal did not become a position. A value, not
// an error: rejected signals are an expected outcome of the bar loop.
type Rejection struct {
	Reason string
}

func (r *Rejection) String() string { return r.Reason }

type Manager struct {
	cfg Config
	log *zap.Logger
}

func NewManager(cfg Config, log *zap.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

const qtyEps = 1e-9

// Open instantiates a position from a breakout signal. Entry fills at the
// trigger price. A zero initial risk (stop collapsing onto entry) rejects
// the signal instead of propagating a division blowup downstream.
func (m *Manager) Open(sig *breakout.Signal, or *openrange.Range, s *market.Series) (*Position, *Rejection) {
	entry := sig.TriggerPrice
	stop, err := m.stopPrice(sig, or, s)
	if err != nil {
		return nil, &Rejection{Reason: err.Error()}
	}

	risk := math.Abs(entry - stop)
	if risk <= 0 {
		return nil, &Rejection{Reason: "zero initial risk"}
	}

	p := &Position{
		ID:             uuid.New().String(),
		Symbol:         sig.Symbol,
		Direction:      sig.Direction,
		EntryTime:      sig.Time,
		EntryPrice:     entry,
		Quantity:       m.cfg.Quantity,
		Remaining:      m.cfg.Quantity,
		InitialStop:    stop,
		Stop:           stop,
		InitialRisk:    risk,
		StopMode:       m.cfg.StopMode,
		ORHigh:         sig.ORHigh,
		ORLow:          sig.ORLow,
		Score:          sig.Score,
		IsSecondChance: sig.IsSecondChance,
	}
	p.Targets = m.buildTargets(p)

	if m.log != nil {
		m.log.Debug("position opened",
			zap.String("id", p.ID),
			zap.String("symbol", p.Symbol),
			zap.String("direction", p.Direction.String()),
			zap.Float64("entry", entry),
			zap.Float64("stop", stop),
			zap.Float64("risk", risk))
	}
	return p, nil
}

// stopPrice resolves the initial stop under the configured mode.
func (m *Manager) stopPrice(sig *breakout.Signal, or *openrange.Range, s *market.Series) (float64, error) {
	structural := m.orOppositeStop(sig, or)

	switch m.cfg.StopMode {
	case StopOROpposite, "":
		return structural, nil

	case StopSwing:
		if pivot, ok := m.recentSwing(sig, s); ok {
			if sig.Direction == market.Long {
				return pivot - m.cfg.StopBuffer, nil
			}
			return pivot + m.cfg.StopBuffer, nil
		}
		// no usable swing in the lookback, fall back to the OR boundary
		return structural, nil

	case StopATRCapped:
		atr := s.ATRValue(m.cfg.ATRPeriod, sig.BarIndex)
		if atr <= 0 {
			return structural, nil
		}
		cap := m.cfg.ATRCapMult * atr
		if sig.Direction == market.Long {
			return math.Max(structural, sig.TriggerPrice-cap), nil
		}
		return math.Min(structural, sig.TriggerPrice+cap), nil
	}
	return 0, fmt.Errorf("unknown stop mode %q", m.cfg.StopMode)
}

func (m *Manager) orOppositeStop(sig *breakout.Signal, or *openrange.Range) float64 {
	if sig.Direction == market.Long {
		return or.Low - m.cfg.StopBuffer
	}
	return or.High + m.cfg.StopBuffer
}

// recentSwing scans back over the lookback window for the most recent
// confirmed pivot low (long) or pivot high (short). A pivot is an extreme
// against `SwingPivot` neighbors on both sides.
func (m *Manager) recentSwing(sig *breakout.Signal, s *market.Series) (float64, bool) {
	k := m.cfg.SwingPivot
	if k <= 0 {
		k = 2
	}
	last := sig.BarIndex - k // pivots need k confirming bars to the right
	first := sig.BarIndex - m.cfg.SwingLookback
	if first < k {
		first = k
	}
	for i := last; i >= first; i-- {
		if sig.Direction == market.Long {
			if isPivotLow(s.Bars, i, k) {
				return s.Bars[i].Low, true
			}
		} else {
			if isPivotHigh(s.Bars, i, k) {
				return s.Bars[i].High, true
			}
		}
	}
	return 0, false
}

func isPivotLow(bars []market.Bar, i, k int) bool {
	if i < k || i+k >= len(bars) {
		return false
	}
	low := bars[i].Low
	for j := i - k; j <= i+k; j++ {
		if bars[j].Low < low {
			return false
		}
	}
	return true
}

func isPivotHigh(bars []market.Bar, i, k int) bool {
	if i < k || i+k >= len(bars) {
		return false
	}
	high := bars[i].High
	for j := i - k; j <= i+k; j++ {
		if bars[j].High > high {
			return false
		}
	}
	return true
}

// buildTargets lays out either the three-tier partial ladder or a single
// full-size target. Quantity fractions were validated at config load; the
// runner takes whatever T1 and T2 leave.
func (m *Manager) buildTargets(p *Position) []Target {
	sign := p.Direction.Sign()
	if !m.cfg.PartialsEnabled {
		return []Target{{
			Price:    p.EntryPrice + sign*m.cfg.PrimaryR*p.InitialRisk,
			Quantity: p.Quantity,
			R:        m.cfg.PrimaryR,
			Reason:   ExitTarget,
		}}
	}
	runnerPct := 1 - m.cfg.T1Pct - m.cfg.T2Pct
	return []Target{
		{
			Price:    p.EntryPrice + sign*m.cfg.T1R*p.InitialRisk,
			Quantity: p.Quantity * m.cfg.T1Pct,
			R:        m.cfg.T1R,
			Reason:   ExitT1,
		},
		{
			Price:    p.EntryPrice + sign*m.cfg.T2R*p.InitialRisk,
			Quantity: p.Quantity * m.cfg.T2Pct,
			R:        m.cfg.T2R,
			Reason:   ExitT2,
		},
		{
			Price:    p.EntryPrice + sign*m.cfg.RunnerR*p.InitialRisk,
			Quantity: p.Quantity * runnerPct,
			R:        m.cfg.RunnerR,
			Reason:   ExitRunner,
		},
	}
}

// Update advances an open position through one bar and reports whether it
// closed. Order inside the bar is fixed: excursions, stop (conservative
// fill assumption, stop beats targets touched in the same bar), then
// targets in ladder order, then the breakeven check.
func (m *Manager) Update(p *Position, bar market.Bar) bool {
	if p.State != Open {
		return true
	}

	m.updateExcursions(p, bar)

	if m.stopHit(p, bar) {
		m.closeRemainder(p, bar, p.Stop, ExitStop)
		return true
	}

	for ti := range p.Targets {
		t := &p.Targets[ti]
		if t.Hit || t.Quantity <= qtyEps {
			continue
		}
		if !m.targetHit(p, bar, t.Price) {
			break // ladder is ordered; nothing further can be hit
		}
		t.Hit = true
		p.Fills = append(p.Fills, Fill{
			Time:     bar.Time,
			Price:    t.Price,
			Quantity: t.Quantity,
			Reason:   t.Reason,
			R:        t.R,
		})
		p.Remaining -= t.Quantity
		t.Quantity = 0
		if t.Reason == ExitT1 {
			m.moveBreakeven(p)
		}
	}

	if p.Remaining <= qtyEps {
		last := p.Fills[len(p.Fills)-1]
		p.Remaining = 0
		p.State = Closed
		p.ExitTime = bar.Time
		p.ExitPrice = last.Price
		p.ExitReason = last.Reason
		p.recalcRealizedR()
		return true
	}

	if m.cfg.MoveBreakevenAtR > 0 && p.MFE >= m.cfg.MoveBreakevenAtR {
		m.moveBreakeven(p)
	}
	return false
}

// ForceClose exits the remainder at the bar close, used at series end.
func (m *Manager) ForceClose(p *Position, bar market.Bar) {
	if p.State != Open {
		return
	}
	m.closeRemainder(p, bar, bar.Close, ExitSessionEnd)
}

func (m *Manager) closeRemainder(p *Position, bar market.Bar, price float64, reason ExitReason) {
	if p.Remaining > qtyEps {
		p.Fills = append(p.Fills, Fill{
			Time:     bar.Time,
			Price:    price,
			Quantity: p.Remaining,
			Reason:   reason,
			R:        p.R(price),
		})
		p.Remaining = 0
	}
	p.State = Closed
	p.ExitTime = bar.Time
	p.ExitPrice = price
	p.ExitReason = reason
	p.recalcRealizedR()
}

func (m *Manager) updateExcursions(p *Position, bar market.Bar) {
	var fav, adv float64
	if p.Direction == market.Long {
		fav = p.R(bar.High)
		adv = p.R(bar.Low)
	} else {
		fav = p.R(bar.Low)
		adv = p.R(bar.High)
	}
	if fav > p.MFE {
		p.MFE = fav
	}
	if adv < p.MAE {
		p.MAE = adv
	}
	if p.MFE < 0 {
		p.MFE = 0
	}
	if p.MAE > 0 {
		p.MAE = 0
	}
}

func (m *Manager) stopHit(p *Position, bar market.Bar) bool {
	if p.Direction == market.Long {
		return bar.Low <= p.Stop
	}
	return bar.High >= p.Stop
}

func (m *Manager) targetHit(p *Position, bar market.Bar, price float64) bool {
	if p.Direction == market.Long {
		return bar.High >= price
	}
	return bar.Low <= price
}

// moveBreakeven relocates the stop to entry +/- buffer, once, and only in
// the tightening direction.
func (m *Manager) moveBreakeven(p *Position) {
	if p.BreakevenMoved {
		return
	}
	var newStop float64
	if p.Direction == market.Long {
		newStop = p.EntryPrice + m.cfg.BreakevenBuffer
		if newStop <= p.Stop {
			return
		}
	} else {
		newStop = p.EntryPrice - m.cfg.BreakevenBuffer
		if newStop >= p.Stop {
			return
		}
	}
	p.Stop = newStop
	p.BreakevenMoved = true
	if m.log != nil {
		m.log.Debug("stop moved to breakeven",
			zap.String("id", p.ID),
			zap.Float64("stop", newStop))
	}
}
