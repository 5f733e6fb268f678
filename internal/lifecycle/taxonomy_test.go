package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstallSetsDivergeOnTerminatedStatuses(t *testing.T) {
	for _, st := range []string{StatusServiceTerminated, StatusUnusedTerminated} {
		assert.True(t, InstallCompletedForFunnel.Has(st), st)
		assert.False(t, InstallCompletedForDashboard.Has(st), st)
		assert.True(t, Churned.Has(st), st)
	}
	for _, st := range []string{StatusInstallCompleted, StatusSuspended} {
		assert.True(t, InstallCompletedForFunnel.Has(st), st)
		assert.True(t, InstallCompletedForDashboard.Has(st), st)
		assert.False(t, Churned.Has(st), st)
	}
	assert.False(t, InstallCompletedForFunnel.Has(StatusRegistered))
	assert.False(t, InstallCompletedForFunnel.Has(StatusSetupInProgress))
}

func TestIsFreshRegistration(t *testing.T) {
	assert.True(t, IsFreshRegistration(""))
	assert.True(t, IsFreshRegistration(NoPriorStatus))
	assert.False(t, IsFreshRegistration(StatusRegistered))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2025-06-01", AddDays("2025-05-25", 7))
	assert.Equal(t, "2025-05-25", AddDays("2025-06-01", -7))
	assert.Equal(t, "2024-12-31", AddDays("2025-01-01", -1))
	assert.Equal(t, "garbage", AddDays("garbage", 3))
}

func TestDatesBetween(t *testing.T) {
	assert.Equal(t,
		[]string{"2025-01-30", "2025-01-31", "2025-02-01"},
		DatesBetween("2025-01-30", "2025-02-01"))
	assert.Equal(t, []string{"2025-01-01"}, DatesBetween("2025-01-01", "2025-01-01"))
	assert.Nil(t, DatesBetween("2025-01-02", "2025-01-01"))
	assert.Nil(t, DatesBetween("bad", "2025-01-01"))
}
