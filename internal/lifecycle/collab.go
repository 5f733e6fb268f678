package lifecycle

import "context"

// Collaborator interfaces consumed by the analytics engine. The persistent
// store behind them is a schema-less key-value table; implementations live
// in internal/storage. The engine only assumes the query shapes below:
// full scans, filtered scans, equality+date range queries, and token
// pagination.

// StoreRoster provides read access to the merchant store records.
type StoreRoster interface {
	// ListStores returns every store record (full scan).
	ListStores(ctx context.Context) ([]Store, error)
	// ListStoresByStatus returns stores whose current status equals status
	// (filtered scan).
	ListStoresByStatus(ctx context.Context, status string) ([]Store, error)
}

// EventHistory provides read access to the append-only status-change log.
type EventHistory interface {
	// EventsByDate returns all events whose changed_date equals date.
	EventsByDate(ctx context.Context, date string) ([]StatusChangeEvent, error)
	// EventsByStore returns a store's events ordered by changed_at ascending
	// (indexed range query).
	EventsByStore(ctx context.Context, storeID string) ([]StatusChangeEvent, error)
	// AllEvents returns the entire event history (full scan).
	AllEvents(ctx context.Context) ([]StatusChangeEvent, error)
}

// OrderActivity provides read access to the pre-aggregated order/day table.
type OrderActivity interface {
	// ActiveSeqs returns every seq with a positive order count on any day.
	ActiveSeqs(ctx context.Context) (map[string]struct{}, error)
	// ActiveSeqsInRange returns every seq with a positive order count on a
	// day within [start, end] inclusive.
	ActiveSeqsInRange(ctx context.Context, start, end string) (map[string]struct{}, error)
	// OrdersOnDate returns seq -> order count for one day; zero-count rows
	// are omitted.
	OrdersOnDate(ctx context.Context, date string) (map[string]int, error)
	// KnownDates returns every order_date present in the table, ascending.
	KnownDates(ctx context.Context) ([]string, error)
	// ScanRange returns one page of aggregates within [start, end]
	// inclusive plus the continuation token for the next page. An empty
	// returned token means the scan is exhausted; callers must loop until
	// then before treating results as complete.
	ScanRange(ctx context.Context, start, end, token string) ([]DailyOrderAggregate, string, error)
}

// SnapshotStore persists funnel snapshots, keyed by (snapshot_date, scope).
// Upsert overwrites; snapshots are never merged or appended.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap FunnelSnapshot) error
	// GetSnapshot returns nil with no error when the snapshot is absent.
	GetSnapshot(ctx context.Context, date, scope string) (*FunnelSnapshot, error)
}

// CounterStore persists the recalculator's daily counters, keyed by date.
type CounterStore interface {
	UpsertCounters(ctx context.Context, c DailyCounters) error
	CountersInRange(ctx context.Context, start, end string) ([]DailyCounters, error)
}

// RunArchiver stores a JSON summary of a completed recalculation run.
// Archival is best-effort and never fails the run.
type RunArchiver interface {
	ArchiveRunSummary(ctx context.Context, sum RunSummary) error
}
