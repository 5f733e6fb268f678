package lifecycle

import (
	"context"
	"sort"
	"time"
)

// memStore is an in-memory implementation of every collaborator interface,
// used to exercise the engine without DynamoDB. ScanRange pages with a
// configurable page size so pagination loops get exercised too.
type memStore struct {
	stores    []Store
	events    []StatusChangeEvent
	orders    []DailyOrderAggregate
	snapshots map[string]FunnelSnapshot // key: date|scope
	counters  map[string]DailyCounters  // key: date
	archived  []RunSummary

	scanPageSize int
}

func newMemStore() *memStore {
	return &memStore{
		snapshots:    make(map[string]FunnelSnapshot),
		counters:     make(map[string]DailyCounters),
		scanPageSize: 2,
	}
}

func (m *memStore) addStore(id, seq, status, owner string) {
	m.stores = append(m.stores, Store{
		StoreID:   id,
		Seq:       seq,
		Status:    status,
		OwnerID:   owner,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func (m *memStore) addEvent(storeID, oldStatus, newStatus, day string) {
	at, _ := time.Parse(DateFormat, day)
	m.events = append(m.events, StatusChangeEvent{
		StoreID:     storeID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		ChangedAt:   at.Add(12 * time.Hour),
		ChangedDate: day,
	})
}

func (m *memStore) addOrders(seq, day string, count int) {
	m.orders = append(m.orders, DailyOrderAggregate{Seq: seq, OrderDate: day, OrderCount: count})
}

func (m *memStore) ListStores(ctx context.Context) ([]Store, error) {
	return append([]Store(nil), m.stores...), nil
}

func (m *memStore) ListStoresByStatus(ctx context.Context, status string) ([]Store, error) {
	var out []Store
	for _, st := range m.stores {
		if st.Status == status {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memStore) EventsByDate(ctx context.Context, date string) ([]StatusChangeEvent, error) {
	var out []StatusChangeEvent
	for _, ev := range m.events {
		if ev.ChangedDate == date {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) EventsByStore(ctx context.Context, storeID string) ([]StatusChangeEvent, error) {
	var out []StatusChangeEvent
	for _, ev := range m.events {
		if ev.StoreID == storeID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

func (m *memStore) AllEvents(ctx context.Context) ([]StatusChangeEvent, error) {
	return append([]StatusChangeEvent(nil), m.events...), nil
}

func (m *memStore) ActiveSeqs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, agg := range m.orders {
		if agg.OrderCount > 0 {
			out[agg.Seq] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) ActiveSeqsInRange(ctx context.Context, start, end string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, agg := range m.orders {
		if agg.OrderCount > 0 && agg.OrderDate >= start && agg.OrderDate <= end {
			out[agg.Seq] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) OrdersOnDate(ctx context.Context, date string) (map[string]int, error) {
	out := make(map[string]int)
	for _, agg := range m.orders {
		if agg.OrderDate == date && agg.OrderCount > 0 {
			out[agg.Seq] += agg.OrderCount
		}
	}
	return out, nil
}

func (m *memStore) KnownDates(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, agg := range m.orders {
		if _, ok := seen[agg.OrderDate]; ok {
			continue
		}
		seen[agg.OrderDate] = struct{}{}
		out = append(out, agg.OrderDate)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ScanRange(ctx context.Context, start, end, token string) ([]DailyOrderAggregate, string, error) {
	var matched []DailyOrderAggregate
	for _, agg := range m.orders {
		if agg.OrderDate >= start && agg.OrderDate <= end {
			matched = append(matched, agg)
		}
	}

	offset := 0
	if token != "" {
		for i, agg := range matched {
			if agg.Seq+"|"+agg.OrderDate == token {
				offset = i + 1
				break
			}
		}
	}
	if offset >= len(matched) {
		return nil, "", nil
	}

	pageSize := m.scanPageSize
	if pageSize <= 0 {
		pageSize = len(matched)
	}
	endIdx := offset + pageSize
	if endIdx > len(matched) {
		endIdx = len(matched)
	}
	page := matched[offset:endIdx]

	next := ""
	if endIdx < len(matched) {
		last := page[len(page)-1]
		next = last.Seq + "|" + last.OrderDate
	}
	return page, next, nil
}

func (m *memStore) UpsertSnapshot(ctx context.Context, snap FunnelSnapshot) error {
	m.snapshots[snap.SnapshotDate+"|"+snap.Scope] = snap
	return nil
}

func (m *memStore) GetSnapshot(ctx context.Context, date, scope string) (*FunnelSnapshot, error) {
	snap, ok := m.snapshots[date+"|"+scope]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memStore) UpsertCounters(ctx context.Context, c DailyCounters) error {
	m.counters[c.Date] = c
	return nil
}

func (m *memStore) CountersInRange(ctx context.Context, start, end string) ([]DailyCounters, error) {
	var out []DailyCounters
	for date, c := range m.counters {
		if date >= start && date <= end {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStore) ArchiveRunSummary(ctx context.Context, sum RunSummary) error {
	m.archived = append(m.archived, sum)
	return nil
}
