// Package governance gates new signals per trading day: signal caps, time
// cutoffs, consecutive-loss lockouts and the daily realized-R cap. Day
// state resets on day transitions; the global consecutive-loss counter and
// lockout persist across days until a qualifying non-full-stop outcome
// breaks the streak.
package governance

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"orb-backtest/services/trade"
)

type Config struct {
	MaxSignalsPerDay   int     `yaml:"max_signals_per_day"`
	LockoutAfterLosses int     `yaml:"lockout_after_losses"`
	TimeCutoffMinutes  int     `yaml:"time_cutoff_minutes"`
	MaxDailyLossR      float64 `yaml:"max_daily_loss_r"` // 0 disables the cap
}

// DayState is the per-day slice of the state machine. Created on each day
// transition, never reused.
type DayState struct {
	Date              time.Time
	SignalsFired      int
	ConsecutiveLosses int
	LockedOut         bool
	LockoutReason     string
	RealizedR         float64
}

type Controller struct {
	cfg Config
	log *zap.Logger

	day          DayState
	sessionStart time.Time

	globalLosses  int
	globalLockout bool
	globalReason  string

	blockedSignals int
}

func NewController(cfg Config, log *zap.Logger) *Controller {
	return &Controller{cfg: cfg, log: log}
}

// ResetForNewDay clears the day-scoped state. Global lockout survives.
func (c *Controller) ResetForNewDay(date, sessionStart time.Time) {
	c.day = DayState{Date: date}
	c.sessionStart = sessionStart
}

// CanTakeSignal reports whether a new entry is allowed right now, with the
// blocking reason when it is not. Every rejection increments the blocked
// counter for run diagnostics.
func (c *Controller) CanTakeSignal(now time.Time) (bool, string) {
	reason := c.blockReason(now)
	if reason == "" {
		return true, ""
	}
	c.blockedSignals++
	return false, reason
}

func (c *Controller) blockReason(now time.Time) string {
	if c.globalLockout {
		return c.globalReason
	}
	if c.day.LockedOut {
		return c.day.LockoutReason
	}
	if c.cfg.MaxSignalsPerDay > 0 && c.day.SignalsFired >= c.cfg.MaxSignalsPerDay {
		return fmt.Sprintf("Max signals per day reached (%d)", c.cfg.MaxSignalsPerDay)
	}
	if c.cfg.TimeCutoffMinutes > 0 {
		cutoff := c.sessionStart.Add(time.Duration(c.cfg.TimeCutoffMinutes) * time.Minute)
		if !now.Before(cutoff) {
			return fmt.Sprintf("Time cutoff reached (%d min)", c.cfg.TimeCutoffMinutes)
		}
	}
	return ""
}

// RecordSignal counts a fired signal against the day's cap.
func (c *Controller) RecordSignal() {
	c.day.SignalsFired++
}

// RecordPositionClosed feeds a closed trade into the loss streaks and the
// daily R cap. A full stop with zero partials extends both streaks; any
// other outcome resets both. The consecutive-loss and daily-cap checks
// both run on every close, whichever trips first wins.
func (c *Controller) RecordPositionClosed(p *trade.Position) {
	c.day.RealizedR += p.RealizedR

	if p.FullStopLoss() {
		c.day.ConsecutiveLosses++
		c.globalLosses++
	} else {
		c.day.ConsecutiveLosses = 0
		c.globalLosses = 0
	}

	if c.cfg.LockoutAfterLosses > 0 {
		if !c.day.LockedOut && c.day.ConsecutiveLosses >= c.cfg.LockoutAfterLosses {
			c.lockDay(fmt.Sprintf("Consecutive losses (%d)", c.day.ConsecutiveLosses))
		}
		if !c.globalLockout && c.globalLosses >= c.cfg.LockoutAfterLosses {
			c.globalLockout = true
			c.globalReason = fmt.Sprintf("Consecutive losses (%d, global)", c.globalLosses)
			if c.log != nil {
				c.log.Warn("global lockout engaged", zap.String("reason", c.globalReason))
			}
		}
	}

	if c.cfg.MaxDailyLossR > 0 && !c.day.LockedOut && c.day.RealizedR <= -c.cfg.MaxDailyLossR {
		c.lockDay(fmt.Sprintf("Daily loss cap reached (%.2fR)", c.day.RealizedR))
	}

	// A qualifying outcome also clears the global lockout: by definition
	// the streak that caused it is broken.
	if !p.FullStopLoss() && c.globalLockout {
		c.globalLockout = false
		c.globalReason = ""
	}
}

func (c *Controller) lockDay(reason string) {
	c.day.LockedOut = true
	c.day.LockoutReason = reason
	if c.log != nil {
		c.log.Info("day lockout engaged",
			zap.Time("date", c.day.Date),
			zap.String("reason", reason))
	}
}

// Day exposes a copy of the current day state.
func (c *Controller) Day() DayState { return c.day }

// GlobalLockedOut reports the cross-day lockout flag.
func (c *Controller) GlobalLockedOut() bool { return c.globalLockout }

// BlockedSignals is the count of entries rejected by any gate this run.
func (c *Controller) BlockedSignals() int { return c.blockedSignals }
