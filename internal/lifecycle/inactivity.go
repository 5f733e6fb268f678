package lifecycle

import (
	"context"
	"fmt"
	"sort"
)

// InactivityDetector finds stores that had orders a week ago but none on
// the target date.
type InactivityDetector struct {
	roster StoreRoster
	events EventHistory
	orders OrderActivity
}

// NewInactivityDetector wires the detector to its collaborators.
func NewInactivityDetector(roster StoreRoster, events EventHistory, orders OrderActivity) *InactivityDetector {
	return &InactivityDetector{roster: roster, events: events, orders: orders}
}

// Detect compares targetDate against the same weekday one week earlier.
// Stores with a positive order count last week, none on the target date,
// and a current status of install-completed are reported with their
// last-week count and first-install date, sorted by first-install date
// descending; stores with no known install date sort last (oldest).
func (d *InactivityDetector) Detect(ctx context.Context, targetDate string) (*InactivityReport, error) {
	lastWeek := AddDays(targetDate, -7)

	today, err := d.orders.OrdersOnDate(ctx, targetDate)
	if err != nil {
		return nil, fmt.Errorf("loading orders for %s: %w", targetDate, err)
	}
	prior, err := d.orders.OrdersOnDate(ctx, lastWeek)
	if err != nil {
		return nil, fmt.Errorf("loading orders for %s: %w", lastWeek, err)
	}

	installed, err := d.roster.ListStoresByStatus(ctx, StatusInstallCompleted)
	if err != nil {
		return nil, fmt.Errorf("listing installed stores: %w", err)
	}
	bySeq := make(map[string]Store, len(installed))
	for _, st := range installed {
		if st.Seq == "" {
			continue
		}
		bySeq[st.Seq] = st
	}

	report := &InactivityReport{
		TargetDate:   targetDate,
		LastWeekDate: lastWeek,
	}
	for seq, count := range prior {
		if count <= 0 {
			continue
		}
		if today[seq] > 0 {
			continue
		}
		st, ok := bySeq[seq]
		if !ok {
			continue
		}

		firstInstall, err := d.firstInstallDate(ctx, st.StoreID)
		if err != nil {
			return nil, err
		}
		report.Stores = append(report.Stores, InactiveStore{
			StoreID:            st.StoreID,
			Seq:                seq,
			LastWeekOrderCount: count,
			FirstInstallDate:   firstInstall,
		})
	}

	// Descending by install date; the empty string compares below every
	// real date, which puts unknown installs at the oldest end.
	sort.Slice(report.Stores, func(i, j int) bool {
		a, b := report.Stores[i], report.Stores[j]
		if a.FirstInstallDate != b.FirstInstallDate {
			return a.FirstInstallDate > b.FirstInstallDate
		}
		return a.StoreID < b.StoreID
	})

	return report, nil
}

// firstInstallDate returns the calendar day of the store's earliest
// transition into install-completed, or "" when none exists.
func (d *InactivityDetector) firstInstallDate(ctx context.Context, storeID string) (string, error) {
	events, err := d.events.EventsByStore(ctx, storeID)
	if err != nil {
		return "", fmt.Errorf("listing events for store %s: %w", storeID, err)
	}
	first := ""
	for _, ev := range events {
		if ev.NewStatus != StatusInstallCompleted {
			continue
		}
		day := ev.ChangedAt.Format(DateFormat)
		if first == "" || day < first {
			first = day
		}
	}
	return first, nil
}
