package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Cohort analysis defaults; all three are overridable through
// CohortAnalyzer fields.
const (
	DefaultCohortCutover  = "2023-04-01"
	DefaultRecencyDays    = 14
	DefaultMaxCohorts     = 6
	DefaultLookupWorkers  = 8
	sentinelSortKey       = "0000-00" // sorts after every real month when descending
	cohortOutcomeActive   = "active"
	cohortOutcomeInactive = "inactive"
	cohortOutcomeChurned  = "churned"
)

// CohortAnalyzer buckets stores by first-install month and classifies each
// cohort member as active, inactive or churned for a given base date.
type CohortAnalyzer struct {
	roster StoreRoster
	events EventHistory
	orders OrderActivity

	// CutoverDate routes installs strictly before it into a single
	// sentinel bucket pinned after every monthly bucket.
	CutoverDate string
	// RecencyDays is the order-activity window that defines "active".
	RecencyDays int
	// MaxCohorts caps the displayed monthly buckets (most recent first).
	MaxCohorts int
	// Workers bounds the per-store history lookup fan-out.
	Workers int
}

// NewCohortAnalyzer wires the analyzer with default tuning.
func NewCohortAnalyzer(roster StoreRoster, events EventHistory, orders OrderActivity) *CohortAnalyzer {
	return &CohortAnalyzer{
		roster:      roster,
		events:      events,
		orders:      orders,
		CutoverDate: DefaultCohortCutover,
		RecencyDays: DefaultRecencyDays,
		MaxCohorts:  DefaultMaxCohorts,
		Workers:     DefaultLookupWorkers,
	}
}

// Analyze produces the cohort report for baseDate (end-of-day inclusive).
// Deterministic for identical inputs: ties in first-install timestamps keep
// the earliest event, and every ordering below is explicit.
func (c *CohortAnalyzer) Analyze(ctx context.Context, baseDate string) (*CohortReport, error) {
	base, err := ParseDate(baseDate)
	if err != nil {
		return nil, fmt.Errorf("invalid base date %q: %w", baseDate, err)
	}
	endOfDay := base.AddDate(0, 0, 1)

	stores, err := c.roster.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}

	installs, err := c.firstInstalls(ctx, stores)
	if err != nil {
		return nil, err
	}

	activeSeqs, err := c.orders.ActiveSeqsInRange(ctx, AddDays(baseDate, -c.RecencyDays), baseDate)
	if err != nil {
		return nil, fmt.Errorf("building recency set: %w", err)
	}

	cutover, err := ParseDate(c.CutoverDate)
	if err != nil {
		return nil, fmt.Errorf("invalid cutover date %q: %w", c.CutoverDate, err)
	}
	sentinelKey := "pre-" + cutover.Format("2006-01")

	buckets := make(map[string]*CohortBucket)
	total := 0
	for _, st := range stores {
		installedAt, ok := installs[st.StoreID]
		if !ok || !installedAt.Before(endOfDay) {
			continue
		}
		total++

		key := installedAt.Format("2006-01")
		if installedAt.Before(cutover) {
			key = sentinelKey
		}
		b, ok := buckets[key]
		if !ok {
			b = &CohortBucket{MonthKey: key}
			buckets[key] = b
		}
		b.Total++
		b.StoreIDs = append(b.StoreIDs, st.StoreID)

		// Active beats churned beats inactive. The churn check reads the
		// store's live current status, not its status as of the cohort
		// date, while activity uses the point-in-time recency window.
		switch {
		case st.Seq != "" && member(activeSeqs, st.Seq):
			b.Active++
		case Churned.Has(st.Status):
			b.Churned++
		default:
			b.Inactive++
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bucketSortKey(keys[i], sentinelKey) > bucketSortKey(keys[j], sentinelKey)
	})
	if len(keys) > c.MaxCohorts {
		keys = keys[:c.MaxCohorts]
	}

	report := &CohortReport{
		BaseDate:          baseDate,
		TotalCohortStores: total,
	}
	for _, key := range keys {
		b := buckets[key]
		sort.Strings(b.StoreIDs)
		report.Buckets = append(report.Buckets, *b)
	}
	report.Flow = buildFlow(report.Buckets)
	return report, nil
}

// firstInstalls finds each store's earliest transition into the
// install-completed status, fanning the per-store history lookups out
// through a bounded worker pool. Stores with no qualifying event are
// absent from the result.
func (c *CohortAnalyzer) firstInstalls(ctx context.Context, stores []Store) (map[string]time.Time, error) {
	workers := c.Workers
	if workers <= 0 {
		workers = DefaultLookupWorkers
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		installs = make(map[string]time.Time, len(stores))
		sem      = make(chan struct{}, workers)
	)

	for _, st := range stores {
		wg.Add(1)
		sem <- struct{}{}
		go func(storeID string) {
			defer wg.Done()
			defer func() { <-sem }()

			events, err := c.events.EventsByStore(ctx, storeID)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("listing events for store %s: %w", storeID, err)
				}
				mu.Unlock()
				return
			}

			var first time.Time
			found := false
			for _, ev := range events {
				if ev.NewStatus != StatusInstallCompleted {
					continue
				}
				if !found || ev.ChangedAt.Before(first) {
					first = ev.ChangedAt
					found = true
				}
			}
			if found {
				mu.Lock()
				installs[storeID] = first
				mu.Unlock()
			}
		}(st.StoreID)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return installs, nil
}

// bucketSortKey maps the sentinel bucket to a key below every real month
// so that a descending sort pins it last.
func bucketSortKey(key, sentinelKey string) string {
	if key == sentinelKey {
		return sentinelSortKey
	}
	return key
}

// buildFlow emits one node per displayed cohort plus the three terminal
// outcome nodes, with one weighted link per nonzero cohort-to-outcome
// count.
func buildFlow(buckets []CohortBucket) FlowGraph {
	var g FlowGraph
	for _, b := range buckets {
		g.Nodes = append(g.Nodes, FlowNode{Name: b.MonthKey})
	}
	base := len(g.Nodes)
	g.Nodes = append(g.Nodes,
		FlowNode{Name: cohortOutcomeActive},
		FlowNode{Name: cohortOutcomeInactive},
		FlowNode{Name: cohortOutcomeChurned},
	)
	for i, b := range buckets {
		if b.Active > 0 {
			g.Links = append(g.Links, FlowLink{Source: i, Target: base, Value: b.Active})
		}
		if b.Inactive > 0 {
			g.Links = append(g.Links, FlowLink{Source: i, Target: base + 1, Value: b.Inactive})
		}
		if b.Churned > 0 {
			g.Links = append(g.Links, FlowLink{Source: i, Target: base + 2, Value: b.Churned})
		}
	}
	return g
}

func member(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
