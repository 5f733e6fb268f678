package lifecycle

import (
	"context"
	"fmt"
	"sort"
)

// HeatmapAggregator builds the store x date order-count matrix over an
// inclusive date window from paginated scans of the order/day table.
type HeatmapAggregator struct {
	roster StoreRoster
	orders OrderActivity
}

// NewHeatmapAggregator wires the aggregator to its collaborators.
func NewHeatmapAggregator(roster StoreRoster, orders OrderActivity) *HeatmapAggregator {
	return &HeatmapAggregator{roster: roster, orders: orders}
}

// Build computes the heatmap for [startDate, endDate] inclusive. Only
// stores currently in the install-completed status appear; seqs present in
// the order table but missing from that roster subset are silently
// dropped. Every calendar date in the window appears in every row,
// zero-filled, and rows sort by total descending.
func (h *HeatmapAggregator) Build(ctx context.Context, startDate, endDate string) (*HeatmapReport, error) {
	installed, err := h.roster.ListStoresByStatus(ctx, StatusInstallCompleted)
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

	// Loop the continuation token until the scan is exhausted; a partial
	// scan must never surface as a finished matrix. Duplicate (seq, date)
	// pairs merge additively.
	counts := make(map[string]map[string]int)
	token := ""
	for {
		page, next, err := h.orders.ScanRange(ctx, startDate, endDate, token)
		if err != nil {
			return nil, fmt.Errorf("scanning order aggregates: %w", err)
		}
		for _, agg := range page {
			if _, ok := bySeq[agg.Seq]; !ok {
				continue
			}
			byDate, ok := counts[agg.Seq]
			if !ok {
				byDate = make(map[string]int)
				counts[agg.Seq] = byDate
			}
			byDate[agg.OrderDate] += agg.OrderCount
		}
		if next == "" {
			break
		}
		token = next
	}

	dates := DatesBetween(startDate, endDate)

	report := &HeatmapReport{
		StartDate: startDate,
		EndDate:   endDate,
		Dates:     dates,
	}
	for seq, st := range bySeq {
		row := HeatmapRow{
			StoreID: st.StoreID,
			Seq:     seq,
			OwnerID: st.OwnerID,
			Counts:  make(map[string]int, len(dates)),
		}
		for _, d := range dates {
			n := counts[seq][d]
			row.Counts[d] = n
			row.Total += n
		}
		report.Rows = append(report.Rows, row)
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Total != report.Rows[j].Total {
			return report.Rows[i].Total > report.Rows[j].Total
		}
		return report.Rows[i].StoreID < report.Rows[j].StoreID
	})

	return report, nil
}
