package lifecycle

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// FunnelAggregator computes daily funnel snapshots from a full roster
// scan plus the day's status-change events, and upserts one snapshot for
// the overall scope and one per owner.
type FunnelAggregator struct {
	roster    StoreRoster
	events    EventHistory
	orders    OrderActivity
	snapshots SnapshotStore
}

// NewFunnelAggregator wires the aggregator to its collaborators.
func NewFunnelAggregator(roster StoreRoster, events EventHistory, orders OrderActivity, snapshots SnapshotStore) *FunnelAggregator {
	return &FunnelAggregator{
		roster:    roster,
		events:    events,
		orders:    orders,
		snapshots: snapshots,
	}
}

// funnelAccum accumulates one scope's counts during the roster pass.
// Accumulators are created lazily on first sight of a scope; no state
// survives across invocations.
type funnelAccum struct {
	stageCounts map[string]int
	funnel      FunnelCounts
}

func newFunnelAccum() *funnelAccum {
	return &funnelAccum{stageCounts: make(map[string]int)}
}

func (a *funnelAccum) observe(st Store, active bool) {
	a.stageCounts[st.Status]++
	a.funnel.Registered++
	if InstallCompletedForFunnel.Has(st.Status) {
		a.funnel.InstallCompleted++
	}
	if active {
		a.funnel.Active++
	}
	if Churned.Has(st.Status) {
		a.funnel.Churned++
	}
}

// BuildSnapshots computes and upserts the funnel snapshots for
// snapshotDate. When activityStart/activityEnd are non-empty the "active"
// determination is restricted to that inclusive window; otherwise any
// all-time positive-count day qualifies. Returns the stored snapshots with
// the overall scope first, then owner scopes in lexical order.
func (f *FunnelAggregator) BuildSnapshots(ctx context.Context, snapshotDate, activityStart, activityEnd string) ([]FunnelSnapshot, error) {
	stores, err := f.roster.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}

	var activeSeqs map[string]struct{}
	if activityStart != "" && activityEnd != "" {
		activeSeqs, err = f.orders.ActiveSeqsInRange(ctx, activityStart, activityEnd)
	} else {
		activeSeqs, err = f.orders.ActiveSeqs(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("building active seq set: %w", err)
	}

	overall := newFunnelAccum()
	byOwner := make(map[string]*funnelAccum)

	for _, st := range stores {
		active := false
		if st.Seq != "" {
			_, active = activeSeqs[st.Seq]
		}

		owner := st.OwnerID
		if owner == "" {
			owner = OwnerUnassigned
		}
		acc, ok := byOwner[owner]
		if !ok {
			acc = newFunnelAccum()
			byOwner[owner] = acc
		}

		overall.observe(st, active)
		acc.observe(st, active)
	}

	change, churnBySource, err := f.dailyMovement(ctx, snapshotDate)
	if err != nil {
		return nil, err
	}

	// Diff against yesterday's overall snapshot; absent means zero deltas.
	yesterday, err := f.snapshots.GetSnapshot(ctx, AddDays(snapshotDate, -1), ScopeOverall)
	if err != nil {
		return nil, fmt.Errorf("loading yesterday's snapshot: %w", err)
	}
	if yesterday != nil {
		change.RegisteredDiff = overall.funnel.Registered - yesterday.Funnel.Registered
		change.InstallCompletedDiff = overall.funnel.InstallCompleted - yesterday.Funnel.InstallCompleted
		change.ActiveDiff = overall.funnel.Active - yesterday.Funnel.Active
		change.ChurnedDiff = overall.funnel.Churned - yesterday.Funnel.Churned
	}

	snaps := make([]FunnelSnapshot, 0, len(byOwner)+1)

	overallSnap := snapshotFromAccum(snapshotDate, ScopeOverall, overall)
	overallSnap.DailyChange = &change
	if len(churnBySource) > 0 {
		overallSnap.ChurnAnalysis = churnBySource
	}
	snaps = append(snaps, overallSnap)

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		snaps = append(snaps, snapshotFromAccum(snapshotDate, OwnerScope(owner), byOwner[owner]))
	}

	for _, snap := range snaps {
		if err := f.snapshots.UpsertSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("upserting snapshot %s/%s: %w", snap.SnapshotDate, snap.Scope, err)
		}
	}

	return snaps, nil
}

// dailyMovement counts today's registrations, installs and churns from the
// event log and groups churn events by their prior status.
func (f *FunnelAggregator) dailyMovement(ctx context.Context, date string) (DailyChange, map[string]int, error) {
	var change DailyChange

	events, err := f.events.EventsByDate(ctx, date)
	if err != nil {
		return change, nil, fmt.Errorf("listing events for %s: %w", date, err)
	}

	churnBySource := make(map[string]int)
	for _, ev := range events {
		if IsFreshRegistration(ev.OldStatus) {
			change.NewRegistrations++
		}
		if InstallCompletedForFunnel.Has(ev.NewStatus) && !InstallCompletedForFunnel.Has(ev.OldStatus) {
			change.NewInstalls++
		}
		if Churned.Has(ev.NewStatus) && !Churned.Has(ev.OldStatus) {
			change.NewChurns++
			churnBySource[ev.OldStatus]++
		}
	}
	return change, churnBySource, nil
}

func snapshotFromAccum(date, scope string, acc *funnelAccum) FunnelSnapshot {
	return FunnelSnapshot{
		SnapshotDate: date,
		Scope:        scope,
		TotalStores:  acc.funnel.Registered,
		StageCounts:  acc.stageCounts,
		Funnel:       acc.funnel,
		Conversion: ConversionRates{
			RegisterToInstall: rate(acc.funnel.InstallCompleted, acc.funnel.Registered),
			InstallToActive:   rate(acc.funnel.Active, acc.funnel.InstallCompleted),
		},
	}
}

// rate returns part/whole as a percentage rounded to one decimal,
// 0 when the denominator is 0.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
