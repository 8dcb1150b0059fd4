package history_test

import (
	"testing"

	"github.com/atlas-desktop/paper-engine/internal/history"
	"github.com/atlas-desktop/paper-engine/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestRegimeRollingCapsAt10(t *testing.T) {
	s := history.NewStore()
	for i := 0; i < 15; i++ {
		s.AppendRegime("sess-1", types.RegimeBullish)
	}
	last5 := s.Last5Regimes("sess-1")
	require.Len(t, last5, 5)
}

func TestOutcomesCapAt20(t *testing.T) {
	s := history.NewStore()
	for i := 0; i < 25; i++ {
		s.AppendOutcome("sess-1", i%2 == 0)
	}
	require.Len(t, s.Outcomes("sess-1"), 20)
}

func TestPeakDrawdownTracksHighWaterMark(t *testing.T) {
	s := history.NewStore()
	s.Reset("sess-1", 1000)
	peak, dd := s.UpdatePeakDrawdown("sess-1", 1200)
	require.InDelta(t, 1200, peak, 1e-9)
	require.InDelta(t, 0, dd, 1e-9)

	peak, dd = s.UpdatePeakDrawdown("sess-1", 950)
	require.InDelta(t, 1200, peak, 1e-9)
	require.InDelta(t, (1200.0-950.0)/1200.0, dd, 1e-9)
}

func TestReleaseDropsSessionState(t *testing.T) {
	s := history.NewStore()
	s.AppendRegime("sess-1", types.RegimeBullish)
	s.Release("sess-1")
	require.Empty(t, s.Last5Regimes("sess-1"))
}

func TestSessionsAreIndependent(t *testing.T) {
	s := history.NewStore()
	s.AppendRegime("a", types.RegimeBullish)
	s.AppendRegime("b", types.RegimeBearish)
	require.Equal(t, []types.RegimeKind{types.RegimeBullish}, s.Last5Regimes("a"))
	require.Equal(t, []types.RegimeKind{types.RegimeBearish}, s.Last5Regimes("b"))
}
