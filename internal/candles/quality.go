package candles

import (
	"fmt"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

// AssessQuality computes the gap/coverage/freshness report the orchestrator
// attaches to a session after every fetch (§4.9 step 3). nowMS is the tick's
// wall-clock time; staleness is judged against 1.5x the timeframe interval.
//
// Grounded on internal/data/quality.go's issue-accumulation idiom in the
// teacher repository; the extreme-move/volume-spike/duplicate-timestamp
// checks there are out of the core's scope (ingestion owns them per §1) —
// only the gap/coverage/freshness triad the orchestrator needs is kept.
func AssessQuality(candles []types.Candle, timeframe types.Timeframe, nowMS int64) types.DataQualityWarning {
	if len(candles) == 0 {
		return types.DataQualityWarning{
			Valid:    false,
			Messages: []string{"no candles available"},
		}
	}

	interval := timeframe.DurationMS()
	gapCount := 0
	for i := 1; i < len(candles); i++ {
		delta := candles[i].Timestamp - candles[i-1].Timestamp
		if delta > interval {
			gapCount++
		}
	}

	span := candles[len(candles)-1].Timestamp - candles[0].Timestamp
	expectedBars := span/interval + 1
	coverage := 1.0
	if expectedBars > 0 {
		coverage = float64(len(candles)) / float64(expectedBars)
	}

	freshness := nowMS - candles[len(candles)-1].Timestamp
	if freshness < 0 {
		freshness = 0
	}

	var messages []string
	valid := true
	if gapCount > 0 {
		messages = append(messages, fmt.Sprintf("%d gap(s) detected in candle sequence", gapCount))
	}
	if coverage < 0.9 {
		valid = false
		messages = append(messages, fmt.Sprintf("coverage ratio %.2f below 0.90", coverage))
	}
	staleLimit := int64(1.5 * float64(interval))
	if freshness > staleLimit {
		valid = false
		messages = append(messages, fmt.Sprintf("latest candle is %dms old, exceeds 1.5x interval", freshness))
	}

	return types.DataQualityWarning{
		GapCount:      gapCount,
		CoverageRatio: coverage,
		FreshnessMS:   freshness,
		Valid:         valid,
		Messages:      messages,
	}
}
