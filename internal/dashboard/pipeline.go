// Package dashboard runs the option-chain pipeline for one viewer: fetch,
// normalize, window, aggregate, diff. Compute is the pure part; Session adds
// the state, refresh loop and stale-response handling around it.
package dashboard

import (
	"github.com/mohamedkhairy/strikeview/internal/metrics"
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/window"
)

// Result is one pass of the pipeline over a snapshot
type Result struct {
	Window  *window.Result          `json:"window"`
	Metrics *models.MetricsSnapshot `json:"metrics"`
}

// Compute selects the window around the ATM strike and aggregates it. It
// holds no state and does not retain snap.
func Compute(snap *models.ChainSnapshot, cfg models.WindowConfig, lotSize int) (*Result, error) {
	if snap == nil {
		return nil, models.NewDataError("snapshot", "missing")
	}
	if lotSize <= 0 {
		return nil, models.NewConfigError("lot_size", lotSize, "must be positive")
	}

	win, err := window.Select(snap.Strikes, snap.UnderlyingPrice, cfg)
	if err != nil {
		return nil, err
	}
	m, err := metrics.Aggregate(win.Strikes, snap.UnderlyingPrice, lotSize)
	if err != nil {
		return nil, err
	}
	return &Result{Window: win, Metrics: m}, nil
}
