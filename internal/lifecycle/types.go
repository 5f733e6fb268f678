package lifecycle

import "time"

// DateFormat is the calendar-day format used throughout the engine.
const DateFormat = "2006-01-02"

// Store is a merchant store record from the roster collaborator.
// Seq links the store to its order records; an empty Seq means the store
// has no commerce integration yet and can never be counted active.
type Store struct {
	StoreID   string    `json:"store_id"`
	Seq       string    `json:"seq,omitempty"`
	Status    string    `json:"status"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusChangeEvent is one immutable entry in the append-only status log.
// ChangedDate is the calendar day of ChangedAt; events missing it are
// skipped by every aggregate.
type StatusChangeEvent struct {
	StoreID     string    `json:"store_id"`
	OldStatus   string    `json:"old_status,omitempty"`
	NewStatus   string    `json:"new_status"`
	ChangedAt   time.Time `json:"changed_at"`
	ChangedDate string    `json:"changed_date"`
}

// DailyOrderAggregate is one pre-aggregated row per store per day.
// OrderCount > 0 defines "had activity that day".
type DailyOrderAggregate struct {
	Seq        string `json:"seq"`
	OrderDate  string `json:"order_date"`
	OrderCount int    `json:"order_count"`
}

// FunnelCounts are the four stage totals of a funnel snapshot. The stages
// are not mutually exclusive: a churned store still counts as registered
// and (per taxonomy) as install-completed.
type FunnelCounts struct {
	Registered       int `json:"registered"`
	InstallCompleted int `json:"install_completed"`
	Active           int `json:"active"`
	Churned          int `json:"churned"`
}

// ConversionRates are percentages rounded to one decimal; both are 0 when
// the denominator is 0.
type ConversionRates struct {
	RegisterToInstall float64 `json:"register_to_install"`
	InstallToActive   float64 `json:"install_to_active"`
}

// DailyChange carries today's event-driven movement plus the diff against
// yesterday's overall snapshot. All fields default to zero when yesterday's
// snapshot is absent.
type DailyChange struct {
	NewRegistrations     int `json:"new_registrations"`
	NewInstalls          int `json:"new_installs"`
	NewChurns            int `json:"new_churns"`
	RegisteredDiff       int `json:"registered_diff"`
	InstallCompletedDiff int `json:"install_completed_diff"`
	ActiveDiff           int `json:"active_diff"`
	ChurnedDiff          int `json:"churned_diff"`
}

// FunnelSnapshot is the overwritable dated aggregate for one reporting
// scope ("overall" or "owner:<id>"), upserted by (snapshot_date, scope).
type FunnelSnapshot struct {
	SnapshotDate  string          `json:"snapshot_date"`
	Scope         string          `json:"scope"`
	TotalStores   int             `json:"total_stores"`
	StageCounts   map[string]int  `json:"stage_counts"`
	Funnel        FunnelCounts    `json:"funnel"`
	Conversion    ConversionRates `json:"conversion"`
	DailyChange   *DailyChange    `json:"daily_change,omitempty"`
	ChurnAnalysis map[string]int  `json:"churn_analysis,omitempty"`
}

// ScopeOverall is the snapshot scope covering every store; owner scopes use
// OwnerScope.
const ScopeOverall = "overall"

// OwnerUnassigned is the owner bucket for stores with no owner_id.
const OwnerUnassigned = "unassigned"

// OwnerScope returns the snapshot scope string for an owner accumulator.
func OwnerScope(ownerID string) string {
	if ownerID == "" {
		ownerID = OwnerUnassigned
	}
	return "owner:" + ownerID
}

// DailyCounters is the recalculator's persisted per-date tuple. The
// cumulative fields are floor-clamped at zero.
type DailyCounters struct {
	Date                string `json:"date"`
	CumulativeInstalled int    `json:"cumulative_installed"`
	CumulativeChurned   int    `json:"cumulative_churned"`
	NewInstalls         int    `json:"new_installs"`
	NewChurns           int    `json:"new_churns"`
	Reactivations       int    `json:"reactivations"`
}

// CohortBucket groups stores sharing a first-install calendar month.
// Derived per request, never persisted.
type CohortBucket struct {
	MonthKey string   `json:"month_key"`
	Total    int      `json:"total"`
	Active   int      `json:"active"`
	Inactive int      `json:"inactive"`
	Churned  int      `json:"churned"`
	StoreIDs []string `json:"store_ids"`
}

// FlowNode and FlowLink form the cohort flow graph; a link's Source and
// Target index into Nodes.
type FlowNode struct {
	Name string `json:"name"`
}

type FlowLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

type FlowGraph struct {
	Nodes []FlowNode `json:"nodes"`
	Links []FlowLink `json:"links"`
}

// CohortReport is the full cohort analysis for a base date. Buckets holds
// the displayed cohorts (most recent first, sentinel bucket last);
// TotalCohortStores counts every store with a qualifying first install on
// or before the base date, across all buckets including truncated ones.
type CohortReport struct {
	BaseDate          string         `json:"base_date"`
	Buckets           []CohortBucket `json:"buckets"`
	TotalCohortStores int            `json:"total_cohort_stores"`
	Flow              FlowGraph      `json:"flow"`
}

// HeatmapRow is one store's per-date order counts over the requested
// window. Counts contains every date in the window, zero-filled.
type HeatmapRow struct {
	StoreID string         `json:"store_id"`
	Seq     string         `json:"seq"`
	OwnerID string         `json:"owner_id,omitempty"`
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
}

// HeatmapReport is the store x date order-count matrix.
type HeatmapReport struct {
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Dates     []string     `json:"dates"`
	Rows      []HeatmapRow `json:"rows"`
}

// InactiveStore is a store that ordered a week ago but not today.
type InactiveStore struct {
	StoreID            string `json:"store_id"`
	Seq                string `json:"seq"`
	LastWeekOrderCount int    `json:"last_week_order_count"`
	FirstInstallDate   string `json:"first_install_date,omitempty"`
}

// InactivityReport is the week-over-week comparison for one target date.
type InactivityReport struct {
	TargetDate   string          `json:"target_date"`
	LastWeekDate string          `json:"last_week_date"`
	Stores       []InactiveStore `json:"stores"`
}

// RunSummary describes one completed recalculation run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	FromDate  string    `json:"from_date,omitempty"`
	ToDate    string    `json:"to_date,omitempty"`
	Dates     int       `json:"dates"`
	Events    int       `json:"events"`
}
