package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshotsNoActivity(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "owner-a")
	mem.addStore("st-2", "", StatusInstallCompleted, "owner-a")
	mem.addStore("st-3", "S3", StatusServiceTerminated, "")

	agg := NewFunnelAggregator(mem, mem, mem, mem)
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, snaps)

	overall := snaps[0]
	assert.Equal(t, ScopeOverall, overall.Scope)
	assert.Equal(t, 3, overall.Funnel.Registered)
	// Terminated stores still count as install-completed in the funnel.
	assert.Equal(t, 3, overall.Funnel.InstallCompleted)
	assert.Equal(t, 0, overall.Funnel.Active)
	assert.Equal(t, 1, overall.Funnel.Churned)
	assert.Equal(t, 0.0, overall.Conversion.InstallToActive)
	assert.Equal(t, 100.0, overall.Conversion.RegisterToInstall)
}

func TestBuildSnapshotsStageCountsSumToTotal(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusRegistered, "a")
	mem.addStore("st-2", "S2", StatusSetupInProgress, "a")
	mem.addStore("st-3", "S3", StatusInstallCompleted, "b")
	mem.addStore("st-4", "S4", StatusSuspended, "b")
	mem.addStore("st-5", "S5", StatusUnusedTerminated, "")

	agg := NewFunnelAggregator(mem, mem, mem, mem)
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)

	for _, snap := range snaps {
		sum := 0
		for _, n := range snap.StageCounts {
			sum += n
		}
		assert.Equal(t, snap.TotalStores, sum, "scope %s", snap.Scope)
		assert.GreaterOrEqual(t, snap.Conversion.RegisterToInstall, 0.0)
		assert.LessOrEqual(t, snap.Conversion.RegisterToInstall, 100.0)
	}
}

func TestBuildSnapshotsOwnerScopes(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "owner-b")
	mem.addStore("st-2", "S2", StatusInstallCompleted, "owner-a")
	mem.addStore("st-3", "S3", StatusRegistered, "")

	agg := NewFunnelAggregator(mem, mem, mem, mem)
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)
	require.Len(t, snaps, 4)

	assert.Equal(t, ScopeOverall, snaps[0].Scope)
	assert.Equal(t, "owner:owner-a", snaps[1].Scope)
	assert.Equal(t, "owner:owner-b", snaps[2].Scope)
	assert.Equal(t, "owner:unassigned", snaps[3].Scope)
	assert.Equal(t, 1, snaps[3].TotalStores)

	// Only the overall snapshot carries the movement block.
	assert.NotNil(t, snaps[0].DailyChange)
	assert.Nil(t, snaps[1].DailyChange)
}

func TestBuildSnapshotsActivityWindow(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "")
	mem.addOrders("S1", "2025-05-01", 3)

	agg := NewFunnelAggregator(mem, mem, mem, mem)

	// All-time activity counts without a window.
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, snaps[0].Funnel.Active)

	// A window excluding the order day does not.
	snaps, err = agg.BuildSnapshots(context.Background(), "2025-06-01", "2025-05-15", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0, snaps[0].Funnel.Active)
}

func TestBuildSnapshotsDailyMovementAndChurnAnalysis(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "")
	mem.addStore("st-2", "S2", StatusServiceTerminated, "")
	mem.addStore("st-3", "S3", StatusUnusedTerminated, "")
	mem.addEvent("st-1", NoPriorStatus, StatusRegistered, "2025-06-01")
	mem.addEvent("st-1", StatusSetupInProgress, StatusInstallCompleted, "2025-06-01")
	mem.addEvent("st-2", StatusInstallCompleted, StatusServiceTerminated, "2025-06-01")
	mem.addEvent("st-3", StatusRegistered, StatusUnusedTerminated, "2025-06-01")
	mem.addEvent("st-9", StatusRegistered, StatusSetupInProgress, "2025-05-30")

	agg := NewFunnelAggregator(mem, mem, mem, mem)
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)

	change := snaps[0].DailyChange
	require.NotNil(t, change)
	assert.Equal(t, 1, change.NewRegistrations)
	// st-3's jump to unused_terminated also enters the funnel install set.
	assert.Equal(t, 2, change.NewInstalls)
	assert.Equal(t, 2, change.NewChurns)

	assert.Equal(t, map[string]int{
		StatusInstallCompleted: 1,
		StatusRegistered:       1,
	}, snaps[0].ChurnAnalysis)
}

func TestBuildSnapshotsDiffAgainstYesterday(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "")
	mem.addStore("st-2", "S2", StatusInstallCompleted, "")

	agg := NewFunnelAggregator(mem, mem, mem, mem)

	_, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
	require.NoError(t, err)

	mem.addStore("st-3", "S3", StatusRegistered, "")
	snaps, err := agg.BuildSnapshots(context.Background(), "2025-06-02", "", "")
	require.NoError(t, err)

	change := snaps[0].DailyChange
	require.NotNil(t, change)
	assert.Equal(t, 1, change.RegisteredDiff)
	assert.Equal(t, 0, change.InstallCompletedDiff)
}

func TestBuildSnapshotsUpsertIsIdempotent(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "owner-a")

	agg := NewFunnelAggregator(mem, mem, mem, mem)
	for i := 0; i < 3; i++ {
		_, err := agg.BuildSnapshots(context.Background(), "2025-06-01", "", "")
		require.NoError(t, err)
	}

	// One overall + one owner snapshot, regardless of how often we rebuild.
	assert.Len(t, mem.snapshots, 2)
	stored, err := mem.GetSnapshot(context.Background(), "2025-06-01", ScopeOverall)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.TotalStores)
}

func TestRateRounding(t *testing.T) {
	assert.Equal(t, 0.0, rate(1, 0))
	assert.Equal(t, 33.3, rate(1, 3))
	assert.Equal(t, 66.7, rate(2, 3))
	assert.Equal(t, 100.0, rate(3, 3))
}
