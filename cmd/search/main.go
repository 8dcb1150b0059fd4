// Command search runs the strategy-search entrypoint (§6): it scores every
// candidate adaptive config in a directory against bullish/bearish/full-
// year candle windows and prints a ranked table.
//
// Grounded on cmd/server/main.go's flag-parsing/zap-setup idiom in the
// teacher repository.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/paper-engine/internal/candles"
	"github.com/atlas-desktop/paper-engine/internal/config"
	"github.com/atlas-desktop/paper-engine/internal/idgen"
	"github.com/atlas-desktop/paper-engine/internal/search"
	"github.com/atlas-desktop/paper-engine/pkg/types"
)

func main() {
	configsDir := flag.String("configs-dir", "./configs", "Directory of candidate RuntimeConfig YAML files")
	dataDir := flag.String("data-dir", "./data", "Candle data directory")
	asset := flag.String("asset", "", "Asset symbol shared by every candidate (default: the first candidate config's asset)")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe")
	bullStartMS := flag.Int64("bull-start-ms", 0, "Bullish window start, unix milliseconds")
	bullEndMS := flag.Int64("bull-end-ms", 0, "Bullish window end, unix milliseconds")
	bearStartMS := flag.Int64("bear-start-ms", 0, "Bearish window start, unix milliseconds")
	bearEndMS := flag.Int64("bear-end-ms", 0, "Bearish window end, unix milliseconds")
	fullStartMS := flag.Int64("full-start-ms", 0, "Full-year window start, unix milliseconds")
	fullEndMS := flag.Int64("full-end-ms", 0, "Full-year window end, unix milliseconds")
	flag.Parse()

	logger := zap.NewExample()
	defer logger.Sync()

	candidates, err := loadCandidates(*configsDir)
	if err != nil {
		logger.Fatal("load candidates", zap.Error(err))
	}
	if len(candidates) == 0 {
		logger.Fatal("no candidate configs found", zap.String("dir", *configsDir))
	}

	ctx := context.Background()
	tf := types.Timeframe(*timeframe)
	store := candles.NewFileStore(logger, *dataDir)

	symbol := *asset
	if symbol == "" {
		rc, err := config.Load(filepath.Join(*configsDir, candidates[0].Name+".yaml"), "")
		if err != nil {
			logger.Fatal("load first candidate asset", zap.Error(err))
		}
		symbol = rc.Asset
	}

	bullish, err := store.Fetch(ctx, symbol, tf, *bullStartMS, *bullEndMS)
	if err != nil {
		logger.Fatal("fetch bullish window", zap.Error(err))
	}
	bearish, err := store.Fetch(ctx, symbol, tf, *bearStartMS, *bearEndMS)
	if err != nil {
		logger.Fatal("fetch bearish window", zap.Error(err))
	}
	fullYear, err := store.Fetch(ctx, symbol, tf, *fullStartMS, *fullEndMS)
	if err != nil {
		logger.Fatal("fetch full-year window", zap.Error(err))
	}

	results, err := search.Run(ctx, idgen.UUIDGenerator{}, candidates, search.Windows{
		Bullish:  bullish,
		Bearish:  bearish,
		FullYear: fullYear,
	})
	if err != nil {
		logger.Fatal("run search", zap.Error(err))
	}

	printResults(results)
}

func loadCandidates(dir string) ([]types.SearchCandidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []types.SearchCandidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		rc, err := config.Load(path, "")
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := rc.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s: %w", path, err)
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		out = append(out, types.SearchCandidate{Name: name, Config: rc.Adaptive})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func printResults(results []types.SearchResult) {
	for rank, r := range results {
		fmt.Printf("%d. %-20s score=%s\n", rank+1, r.Name, decimal.NewFromFloat(r.Score).Round(2).String())
		for k, v := range r.Subscores {
			fmt.Printf("     %-20s %s\n", k, decimal.NewFromFloat(v).Round(2).String())
		}
	}
}
