// Package candles implements the file-backed CandleSource collaborator: the
// core borrows candles through pkg/ports.CandleSource and never owns their
// storage. This is the only concrete adapter the session orchestrator needs
// for the backtest/search/verify entrypoints and local development.
//
// Grounded on internal/data/store.go in the teacher repository: the
// directory-of-JSON-files, in-memory cache, and sorted-on-load idiom are
// kept; the sample-data generator is dropped (the core never extrapolates
// missing candles, per §3).
package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/atlas-desktop/paper-engine/pkg/types"
	"go.uber.org/zap"
)

// FileStore loads candle sequences from one JSON file per symbol/timeframe
// pair under dataDir, named "<symbol>_<timeframe>.json".
type FileStore struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string][]types.Candle
}

func NewFileStore(logger *zap.Logger, dataDir string) *FileStore {
	return &FileStore{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string][]types.Candle),
	}
}

// Fetch implements ports.CandleSource. Candles are read, sorted ascending by
// timestamp, validated, and windowed to [startMS, endMS].
func (s *FileStore) Fetch(ctx context.Context, symbol string, timeframe types.Timeframe, startMS, endMS int64) ([]types.Candle, error) {
	key := fmt.Sprintf("%s_%s", symbol, timeframe)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		loaded, err := s.loadFile(key)
		if err != nil {
			return nil, fmt.Errorf("candles: fetch %s: %w", key, err)
		}
		s.mu.Lock()
		s.cache[key] = loaded
		s.mu.Unlock()
		cached = loaded
	}

	return windowed(cached, startMS, endMS), nil
}

func (s *FileStore) loadFile(key string) ([]types.Candle, error) {
	path := filepath.Join(s.dataDir, key+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, types.ErrFetchFailure)
	}

	var out []types.Candle
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	kept := out[:0]
	for i := range out {
		if err := out[i].Validate(); err != nil {
			s.logger.Warn("invalid candle dropped from load", zap.String("file", path), zap.Int("index", i), zap.Error(err))
			continue
		}
		kept = append(kept, out[i])
	}
	return kept, nil
}

// Save writes candles to disk and refreshes the cache, used by the data
// preparation step ahead of a backtest or strategy search run.
func (s *FileStore) Save(symbol string, timeframe types.Timeframe, bars []types.Candle) error {
	key := fmt.Sprintf("%s_%s", symbol, timeframe)
	sorted := make([]types.Candle, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("candles: create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("candles: marshal %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, key+".json"), raw, 0o644); err != nil {
		return fmt.Errorf("candles: write %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = sorted
	s.mu.Unlock()
	return nil
}

func windowed(bars []types.Candle, startMS, endMS int64) []types.Candle {
	out := make([]types.Candle, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp >= startMS && b.Timestamp <= endMS {
			out = append(out, b)
		}
	}
	return out
}
