package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orb-backtest/services/engine"
	"orb-backtest/services/factors"
	"orb-backtest/services/market"
	"orb-backtest/services/openrange"
	"orb-backtest/services/scoring"
	"orb-backtest/services/trade"
)

func sampleResult() *engine.Result {
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	p := &trade.Position{
		ID:          "t-1",
		Symbol:      "AAPL",
		Direction:   market.Long,
		EntryTime:   t0,
		EntryPrice:  100,
		Quantity:    1,
		InitialStop: 99,
		Stop:        100.05,
		InitialRisk: 1,
		State:       trade.Closed,
		ExitTime:    t0.Add(5 * time.Minute),
		ExitPrice:   101.5,
		ExitReason:  trade.ExitRunner,
		RealizedR:   1.25,
		MFE:         1.5,
		Fills: []trade.Fill{
			{Time: t0.Add(2 * time.Minute), Price: 101, Quantity: 0.5, Reason: trade.ExitT1, R: 1},
			{Time: t0.Add(5 * time.Minute), Price: 101.5, Quantity: 0.5, Reason: trade.ExitRunner, R: 1.5},
		},
		ORHigh: 100.5,
		ORLow:  99.5,
		Score: scoring.Score{
			Long:  2.5,
			Short: 0.5,
			Signals: map[factors.Kind]factors.Signal{
				factors.RelativeVolume: {Long: true, Value: 2.0, Valid: true},
			},
		},
	}
	r := &openrange.Range{
		Symbol:        "AAPL",
		Date:          time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Start:         t0.Add(-30 * time.Minute),
		End:           t0,
		Duration:      30 * time.Minute,
		High:          100.5,
		Low:           99.5,
		Width:         1,
		Validity:      openrange.Valid,
		ATR:           0.4,
		NormalizedVol: 0.02,
		BarCount:      30,
	}
	return &engine.Result{
		JobID:      "job-1",
		StartedAt:  t0,
		FinishedAt: t0.Add(time.Second),
		Instruments: []*engine.InstrumentResult{
			{Symbol: "AAPL", Trades: []*trade.Position{p}, Ranges: []*openrange.Range{r}},
		},
		Metrics: engine.Metrics{TotalTrades: 1, Wins: 1, WinRate: 1, TotalR: 1.25},
		Equity: []engine.EquityPoint{
			{Time: p.ExitTime, Symbol: "AAPL", TradeR: 1.25, CumulativeR: 1.25},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := WriteTradesCSV(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 trade", len(rows))
	}
	row := rows[1]
	if row[0] != "t-1" || row[1] != "AAPL" || row[2] != "long" {
		t.Fatalf("identity columns = %v", row[:3])
	}
	if row[7] != "RUNNER" {
		t.Fatalf("exit_reason = %q", row[7])
	}
	if row[11] != "1.25" {
		t.Fatalf("realized_r = %q", row[11])
	}
	if row[14] != "2" {
		t.Fatalf("partial_fills = %q, want 2 target fills", row[14])
	}
}

func TestWriteRangesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.csv")
	if err := WriteRangesCSV(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 range", len(rows))
	}
	row := rows[1]
	if row[1] != "2024-03-04" || row[4] != "30" || row[8] != "VALID" {
		t.Fatalf("range row = %v", row)
	}
}

func TestWriteEquityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	if err := WriteEquityCSV(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 || rows[1][3] != "1.25" {
		t.Fatalf("equity rows = %v", rows)
	}
}

func TestWriteResultJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := WriteResultJSON(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		JobID  string `json:"job_id"`
		Trades []struct {
			ID        string `json:"trade_id"`
			Reason    string `json:"exit_reason"`
			RealizedR string `json:"realized_r"`
			LongScore string `json:"long_score"`
			Factors   map[string]struct {
				Long  bool    `json:"long"`
				Value float64 `json:"value"`
			} `json:"factors"`
			Fills []struct {
				Reason string `json:"reason"`
			} `json:"fills"`
		} `json:"trades"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.JobID != "job-1" || len(out.Trades) != 1 {
		t.Fatalf("job %q trades %d", out.JobID, len(out.Trades))
	}
	tr := out.Trades[0]
	if tr.Reason != "RUNNER" || tr.RealizedR != "1.25" || tr.LongScore != "2.5" {
		t.Fatalf("trade = %+v", tr)
	}
	fs, ok := tr.Factors["relative_volume"]
	if !ok || !fs.Long || fs.Value != 2.0 {
		t.Fatalf("factor snapshot = %+v", tr.Factors)
	}
	if len(tr.Fills) != 2 || tr.Fills[0].Reason != "T1" {
		t.Fatalf("fills = %+v", tr.Fills)
	}
}
