package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/paper-engine/internal/session"
)

func TestSchedulerRunsSweepWithoutDisturbingActiveSessions(t *testing.T) {
	mgr, _ := newTestManager(genTrendingCandles(60))
	state, err := mgr.StartSession(context.Background(), "BTC-USD", "test", testConfig())
	require.NoError(t, err)

	sched, err := session.NewScheduler(zap.NewNop(), mgr, "@every 10ms")
	require.NoError(t, err)
	sched.Start()

	time.Sleep(40 * time.Millisecond)
	sched.Stop()

	got, err := mgr.GetActiveSession(state.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	mgr, _ := newTestManager(genTrendingCandles(60))
	_, err := session.NewScheduler(zap.NewNop(), mgr, "not-a-valid-cron-spec")
	require.Error(t, err)
}
