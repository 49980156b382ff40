package server

import (
	"time"

	"github.com/rickgao/aggression-monitor/internal/poller"
	"github.com/rickgao/aggression-monitor/internal/threshold"
)

type loopView struct {
	Symbol     string    `json:"symbol"`
	Cycles     int64     `json:"cycles"`
	LastCycle  time.Time `json:"last_cycle,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Trades     int       `json:"trades"`
	Pages      int       `json:"pages"`
	Partial    bool      `json:"partial"`
	NewTrades  int       `json:"new_trades"`
	Buckets    int       `json:"buckets"`
	Status     string    `json:"status"`
	Samples    int       `json:"samples"`
	Mean       string    `json:"mean"`
	StdDev     string    `json:"std_dev"`
	Latest     string    `json:"latest"`
	Direction  string    `json:"direction,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	AlertID    string    `json:"alert_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func newLoopView(ls poller.LoopStatus) loopView {
	r := ls.Last
	v := loopView{
		Symbol:     ls.Symbol,
		Cycles:     ls.Cycles,
		LastCycle:  r.Started,
		DurationMS: r.Duration.Milliseconds(),
		Trades:     r.Trades,
		Pages:      r.Pages,
		Partial:    r.Partial,
		NewTrades:  r.NewTrades,
		Buckets:    r.Buckets,
		Status:     r.Status.String(),
		Samples:    r.Model.SampleCount,
		Mean:       r.Model.Mean.String(),
		StdDev:     r.Model.StdDev.String(),
		Latest:     r.Latest.String(),
		Outcome:    r.Outcome,
		AlertID:    r.AlertID,
	}
	if r.Signal != nil {
		v.Direction = r.Signal.Direction.String()
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	if r.Status == threshold.StatusNone {
		v.Status = "error"
	}
	if ls.Cycles == 0 {
		v.Status = "pending"
	}
	return v
}
