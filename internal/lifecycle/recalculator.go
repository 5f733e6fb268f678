package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/commercepulse/store-monitor/internal/pkg/logger"
)

// ReactivationRecalculator replays the entire status-change history to
// rebuild the daily cumulative counters. Replaying from scratch is what
// makes backward transitions (a store leaving install-completed, or
// leaving churned) come out right; incremental daily counting cannot
// represent them. Batch/maintenance only, idempotent per date once the
// history is stable.
type ReactivationRecalculator struct {
	events   EventHistory
	orders   OrderActivity
	counters CounterStore
	archive  RunArchiver // optional
}

// NewReactivationRecalculator wires the recalculator. archive may be nil.
func NewReactivationRecalculator(events EventHistory, orders OrderActivity, counters CounterStore, archive RunArchiver) *ReactivationRecalculator {
	return &ReactivationRecalculator{
		events:   events,
		orders:   orders,
		counters: counters,
		archive:  archive,
	}
}

// dayDeltas are the four per-date movements derived from the event log.
type dayDeltas struct {
	newInstalls   int
	uninstalls    int
	newChurns     int
	reactivations int
}

// Run replays the full event history and upserts one DailyCounters tuple
// per date. A failure mid-run aborts the remaining dates; already-written
// dates stay (no rollback) and a rerun is safe.
func (r *ReactivationRecalculator) Run(ctx context.Context) (RunSummary, error) {
	sum := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger.Info("recalculation started", "run_id", sum.RunID)

	events, err := r.events.AllEvents(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading event history: %w", err)
	}
	sum.Events = len(events)

	deltas := make(map[string]*dayDeltas)
	for _, ev := range events {
		if ev.ChangedDate == "" {
			// Partial upstream data; skip, never fatal.
			continue
		}
		d, ok := deltas[ev.ChangedDate]
		if !ok {
			d = &dayDeltas{}
			deltas[ev.ChangedDate] = d
		}
		// The dashboard taxonomy applies here: a termination leaves the
		// install set (an uninstall) at the same time it enters the churn
		// set, and the reverse transition is a reactivation plus a new
		// install.
		inInstallNow := InstallCompletedForDashboard.Has(ev.NewStatus)
		inInstallBefore := InstallCompletedForDashboard.Has(ev.OldStatus)
		if inInstallNow && !inInstallBefore {
			d.newInstalls++
		}
		if !inInstallNow && inInstallBefore {
			d.uninstalls++
		}
		inChurnNow := Churned.Has(ev.NewStatus)
		inChurnBefore := Churned.Has(ev.OldStatus)
		if inChurnNow && !inChurnBefore {
			d.newChurns++
		}
		if !inChurnNow && inChurnBefore {
			d.reactivations++
		}
	}

	orderDates, err := r.orders.KnownDates(ctx)
	if err != nil {
		return sum, fmt.Errorf("listing order dates: %w", err)
	}

	// The date axis is every known order-aggregate date plus any event
	// date outside that set, so a churn on a day with no orders still
	// produces a persisted tuple.
	seen := make(map[string]struct{}, len(orderDates))
	dates := make([]string, 0, len(orderDates)+len(deltas))
	for _, d := range orderDates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	for d := range deltas {
		if _, ok := seen[d]; !ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	cumulativeInstalled := 0
	cumulativeChurned := 0
	for _, date := range dates {
		d := deltas[date]
		if d == nil {
			d = &dayDeltas{}
		}
		cumulativeInstalled += d.newInstalls - d.uninstalls
		if cumulativeInstalled < 0 {
			cumulativeInstalled = 0
		}
		cumulativeChurned += d.newChurns - d.reactivations
		if cumulativeChurned < 0 {
			cumulativeChurned = 0
		}

		c := DailyCounters{
			Date:                date,
			CumulativeInstalled: cumulativeInstalled,
			CumulativeChurned:   cumulativeChurned,
			NewInstalls:         d.newInstalls,
			NewChurns:           d.newChurns,
			Reactivations:       d.reactivations,
		}
		if err := r.counters.UpsertCounters(ctx, c); err != nil {
			return sum, fmt.Errorf("upserting counters for %s: %w", date, err)
		}
		sum.Dates++
		logger.Info("recalculated date",
			"run_id", sum.RunID,
			"date", date,
			"cumulative_installed", cumulativeInstalled,
			"cumulative_churned", cumulativeChurned,
			"reactivations", d.reactivations,
		)
	}

	if len(dates) > 0 {
		sum.FromDate = dates[0]
		sum.ToDate = dates[len(dates)-1]
	}
	sum.Duration = time.Since(sum.StartedAt).Round(time.Millisecond).String()

	if r.archive != nil {
		if err := r.archive.ArchiveRunSummary(ctx, sum); err != nil {
			logger.Warn("archiving run summary failed", "run_id", sum.RunID, "error", err.Error())
		}
	}

	logger.Info("recalculation finished",
		"run_id", sum.RunID,
		"dates", sum.Dates,
		"events", sum.Events,
		"duration", sum.Duration,
	)
	return sum, nil
}
