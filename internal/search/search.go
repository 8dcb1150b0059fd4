// Package search implements the strategy-search entrypoint (§6): it scores
// a set of candidate adaptive configs against bullish/bearish/full-year
// candle windows and ranks them by a weighted, clipped composite score.
//
// Grounded on internal/optimization/optimizer.go's parallel-worker
// evaluation idiom in the teacher repository; the genetic-algorithm/
// walk-forward machinery there is replaced with a direct per-candidate
// fan-out over backtest.Run, parallelized with golang.org/x/sync/errgroup
// instead of a hand-rolled worker pool.
package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-desktop/paper-engine/internal/backtest"
	"github.com/atlas-desktop/paper-engine/pkg/ports"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// Windows bundles the three candle windows a candidate is scored against.
type Windows struct {
	Bullish  []types.Candle
	Bearish  []types.Candle
	FullYear []types.Candle
}

// Run backtests every candidate against all three windows concurrently (one
// goroutine per candidate) and returns results ranked descending by score.
func Run(ctx context.Context, ids ports.IDGenerator, candidates []types.SearchCandidate, windows Windows) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for idx, c := range candidates {
		idx, c := idx, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			fullYear, err := backtest.Run(ids, windows.FullYear, c.Config, nil)
			if err != nil {
				return err
			}
			bullish, err := backtest.Run(ids, windows.Bullish, c.Config, nil)
			if err != nil {
				return err
			}
			bearish, err := backtest.Run(ids, windows.Bearish, c.Config, nil)
			if err != nil {
				return err
			}
			results[idx] = score(c.Name, fullYear.Metrics, bullish.Metrics, bearish.Metrics)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// score applies the weighted composite (30/20/20/10/10/5/3/2, §6), with
// each subscore clipped to [0,100] before weighting. Sharpe and profit
// factor are unitless ratios rather than percentages, so they're scaled
// onto a comparable range before clipping (documented decision, see
// DESIGN.md).
func score(name string, fullYear, bullish, bearish types.AggregateMetrics) types.SearchResult {
	sub := map[string]float64{
		"full_year_vs_hold": clip(fullYear.VsEthHold),
		"bullish_vs_hold":   clip(bullish.VsEthHold),
		"bearish_vs_hold":   clip(bearish.VsEthHold),
		"absolute_return":   clip(fullYear.ReturnPct),
		"risk_adjusted":     clip(fullYear.RiskAdjustedReturn),
		"win_rate":          clip(fullYear.WinRate * 100),
		"sharpe":            clip(fullYear.SharpeRatio * 20),
		"profit_factor":     clip(fullYear.ProfitFactor * 30),
	}
	total := 0.30*sub["full_year_vs_hold"] +
		0.20*sub["bullish_vs_hold"] +
		0.20*sub["bearish_vs_hold"] +
		0.10*sub["absolute_return"] +
		0.10*sub["risk_adjusted"] +
		0.05*sub["win_rate"] +
		0.03*sub["sharpe"] +
		0.02*sub["profit_factor"]

	return types.SearchResult{
		Name:      name,
		Score:     total,
		Subscores: sub,
		FullYear:  fullYear,
		Bullish:   bullish,
		Bearish:   bearish,
	}
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
