// Command backtest replays a candle window through the decision-and-
// execution core and prints the per-period analyses and aggregate metrics
// the backtest entrypoint produces (§6).
//
// Grounded on cmd/server/main.go's flag-parsing/zap-setup/ordered-wiring
// idiom in the teacher repository, trimmed to the handful of flags a batch
// CLI needs instead of a long-running server's.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/paper-engine/internal/backtest"
	"github.com/atlas-desktop/paper-engine/internal/candles"
	"github.com/atlas-desktop/paper-engine/internal/config"
	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to a RuntimeConfig YAML file")
	envFile := flag.String("env", "", "Optional .env file to load before reading config")
	startMS := flag.Int64("start-ms", 0, "Window start, unix milliseconds")
	endMS := flag.Int64("end-ms", 0, "Window end, unix milliseconds")
	ethDataDir := flag.String("eth-data-dir", "", "Optional data dir to load an ETH-USD buy-and-hold baseline from")
	flag.Parse()

	logger := setupLogger("info")
	defer logger.Sync()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx := context.Background()
	store := candles.NewFileStore(logger, cfg.DataDir)
	bars, err := store.Fetch(ctx, cfg.Asset, cfg.Timeframe, *startMS, *endMS)
	if err != nil {
		logger.Fatal("fetch candles", zap.Error(err))
	}

	var ethBars []types.Candle
	if *ethDataDir != "" {
		ethStore := candles.NewFileStore(logger, *ethDataDir)
		ethBars, err = ethStore.Fetch(ctx, "ETH-USD", cfg.Timeframe, *startMS, *endMS)
		if err != nil {
			logger.Warn("fetch eth baseline, continuing without vsEthHold", zap.Error(err))
			ethBars = nil
		}
	}

	result, err := backtest.Run(idgen.UUIDGenerator{}, bars, cfg.Adaptive, ethBars)
	if err != nil {
		logger.Fatal("run backtest", zap.Error(err))
	}

	printReport(result)
}

func printReport(result *types.BacktestResult) {
	m := result.Metrics
	fmt.Printf("periods:              %d\n", len(result.Periods))
	fmt.Printf("trades:               %d\n", len(result.Trades))
	fmt.Printf("return_pct:           %s%%\n", pct(m.ReturnPct))
	fmt.Printf("max_drawdown_pct:     %s%%\n", pct(m.MaxDrawdownPct))
	fmt.Printf("win_rate:             %s%%\n", pct(m.WinRate*100))
	fmt.Printf("sharpe_ratio:         %s\n", dec(m.SharpeRatio))
	fmt.Printf("profit_factor:        %s\n", dec(m.ProfitFactor))
	fmt.Printf("risk_adjusted_return: %s\n", dec(m.RiskAdjustedReturn))
	fmt.Printf("vs_eth_hold:          %s%%\n", pct(m.VsEthHold))
}

func pct(v float64) string { return decimal.NewFromFloat(v).Round(2).String() }
func dec(v float64) string { return decimal.NewFromFloat(v).Round(4).String() }

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger setup failed:", err)
		os.Exit(1)
	}
	return logger
}
