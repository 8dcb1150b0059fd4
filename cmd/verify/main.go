// Command verify runs the backfill verifier (§8): it replays a session's
// own recorded candle history through the backtest engine and reports
// whether the final portfolio value and trade count reproduce within
// tolerance.
//
// Grounded on cmd/server/main.go's flag-parsing/zap-setup idiom in the
// teacher repository.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/paper-engine/internal/candles"
	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/internal/verify"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

func main() {
	sessionFile := flag.String("session", "", "Path to a persisted SessionState JSON dump")
	dataDir := flag.String("data-dir", "./data", "Candle data directory")
	flag.Parse()

	logger := zap.NewExample()
	defer logger.Sync()

	if *sessionFile == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -session <path> [-data-dir <dir>]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*sessionFile)
	if err != nil {
		logger.Fatal("read session file", zap.Error(err))
	}
	var state types.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		logger.Fatal("parse session file", zap.Error(err))
	}

	ctx := context.Background()
	store := candles.NewFileStore(logger, *dataDir)
	bars, err := store.Fetch(ctx, state.Asset, state.Config.Bullish.Timeframe, state.StartedAt, state.LastUpdate)
	if err != nil {
		logger.Fatal("fetch candles", zap.Error(err))
	}

	report, err := verify.Run(idgen.UUIDGenerator{}, &state, bars)
	if err != nil {
		logger.Fatal("run verification", zap.Error(err))
	}

	fmt.Printf("session:               %s\n", report.SessionID)
	fmt.Printf("recorded_final_value:  %s\n", dec(report.RecordedFinalValue))
	fmt.Printf("replayed_final_value:  %s\n", dec(report.ReplayedFinalValue))
	fmt.Printf("value_delta_pct:       %s%%\n", dec(report.ValueDeltaPct*100))
	fmt.Printf("recorded_trade_count:  %d\n", report.RecordedTradeCount)
	fmt.Printf("replayed_trade_count:  %d\n", report.ReplayedTradeCount)
	fmt.Printf("trade_count_delta:     %d\n", report.TradeCountDelta)
	fmt.Printf("passed:                %v\n", report.Passed)

	if !report.Passed {
		os.Exit(1)
	}
}

func dec(v float64) string { return decimal.NewFromFloat(v).Round(4).String() }
