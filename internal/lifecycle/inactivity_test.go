package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInactivityDetectsWeekOverWeekDrop(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-2", "S2", StatusInstallCompleted, "")
	mem.addEvent("st-2", StatusSetupInProgress, StatusInstallCompleted, "2025-05-01")
	mem.addOrders("S2", "2025-05-25", 4)

	det := NewInactivityDetector(mem, mem, mem)
	report, err := det.Detect(context.Background(), "2025-06-01")
	require.NoError(t, err)

	assert.Equal(t, "2025-06-01", report.TargetDate)
	assert.Equal(t, "2025-05-25", report.LastWeekDate)
	require.Len(t, report.Stores, 1)
	got := report.Stores[0]
	assert.Equal(t, "st-2", got.StoreID)
	assert.Equal(t, 4, got.LastWeekOrderCount)
	assert.Equal(t, "2025-05-01", got.FirstInstallDate)
}

func TestInactivitySkipsStillActiveStores(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusInstallCompleted, "")
	mem.addOrders("S1", "2025-05-25", 3)
	mem.addOrders("S1", "2025-06-01", 2)

	det := NewInactivityDetector(mem, mem, mem)
	report, err := det.Detect(context.Background(), "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, report.Stores)
}

func TestInactivitySkipsNonInstalledStores(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-1", "S1", StatusServiceTerminated, "")
	mem.addOrders("S1", "2025-05-25", 3)

	det := NewInactivityDetector(mem, mem, mem)
	report, err := det.Detect(context.Background(), "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, report.Stores)
}

func TestInactivitySortsNewestInstallFirst(t *testing.T) {
	mem := newMemStore()
	mem.addStore("st-old", "S1", StatusInstallCompleted, "")
	mem.addStore("st-new", "S2", StatusInstallCompleted, "")
	mem.addStore("st-unknown", "S3", StatusInstallCompleted, "")
	mem.addEvent("st-old", StatusSetupInProgress, StatusInstallCompleted, "2024-02-01")
	mem.addEvent("st-new", StatusSetupInProgress, StatusInstallCompleted, "2025-05-01")
	// st-unknown has no install event at all.
	for _, seq := range []string{"S1", "S2", "S3"} {
		mem.addOrders(seq, "2025-05-25", 1)
	}

	det := NewInactivityDetector(mem, mem, mem)
	report, err := det.Detect(context.Background(), "2025-06-01")
	require.NoError(t, err)

	require.Len(t, report.Stores, 3)
	assert.Equal(t, "st-new", report.Stores[0].StoreID)
	assert.Equal(t, "st-old", report.Stores[1].StoreID)
	// Unknown install dates sort last.
	assert.Equal(t, "st-unknown", report.Stores[2].StoreID)
	assert.Empty(t, report.Stores[2].FirstInstallDate)
}
