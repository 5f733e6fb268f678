package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/commercepulse/store-monitor/internal/lifecycle"
	"github.com/commercepulse/store-monitor/internal/pkg/httputil"
	"github.com/commercepulse/store-monitor/internal/storage"
)

// Dashboard view names selected by the ?view query parameter.
const (
	ViewCohort     = "cohort"
	ViewHeatmap    = "heatmap"
	ViewInactivity = "inactivity"
)

// defaultHeatmapDays is the window used when a heatmap request carries no
// explicit date range.
const defaultHeatmapDays = 30

// Handlers contains all HTTP handlers. Every computation is stateless and
// re-reads its inputs fresh; the optional report cache only short-circuits
// repeated identical dashboard requests.
type Handlers struct {
	funnel     *lifecycle.FunnelAggregator
	cohort     *lifecycle.CohortAnalyzer
	heatmap    *lifecycle.HeatmapAggregator
	inactivity *lifecycle.InactivityDetector
	counters   lifecycle.CounterStore
	cache      *storage.ReportCache

	// now is replaceable in tests; defaults to time.Now.
	now func() time.Time
}

// NewHandlers creates a Handlers instance. cache may be nil.
func NewHandlers(
	funnel *lifecycle.FunnelAggregator,
	cohort *lifecycle.CohortAnalyzer,
	heatmap *lifecycle.HeatmapAggregator,
	inactivity *lifecycle.InactivityDetector,
	counters lifecycle.CounterStore,
	cache *storage.ReportCache,
) *Handlers {
	return &Handlers{
		funnel:     funnel,
		cohort:     cohort,
		heatmap:    heatmap,
		inactivity: inactivity,
		counters:   counters,
		cache:      cache,
		now:        time.Now,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// GetFunnelSnapshot computes and upserts the funnel snapshots for
// base_date (default today). When start_date/end_date are supplied the
// "active" determination is restricted to that window; otherwise any
// all-time order activity counts.
func (h *Handlers) GetFunnelSnapshot(w http.ResponseWriter, r *http.Request) {
	baseDate, err := h.dateParam(r, "base_date", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	start, end, err := h.optionalRange(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	snaps, err := h.funnel.BuildSnapshots(r.Context(), baseDate, start, end)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"snapshot_date": baseDate,
		"snapshots":     snaps,
	})
}

// GetDailyCounters returns the stored reactivation-aware daily counters
// for the requested date range.
func (h *Handlers) GetDailyCounters(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeParams(r, defaultHeatmapDays)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	counters, err := h.counters.CountersInRange(r.Context(), start, end)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"start_date": start,
		"end_date":   end,
		"counters":   counters,
	})
}

// GetDashboard serves the cohort, heatmap and inactivity sub-reports,
// selected by the view parameter (default cohort).
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = ViewCohort
	}

	switch view {
	case ViewCohort:
		h.dashboardCohort(w, r)
	case ViewHeatmap:
		h.dashboardHeatmap(w, r)
	case ViewInactivity:
		h.dashboardInactivity(w, r)
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown view %q", view))
	}
}

func (h *Handlers) dashboardCohort(w http.ResponseWriter, r *http.Request) {
	baseDate, err := h.dateParam(r, "base_date", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var cached lifecycle.CohortReport
	if h.cache.Get(r.Context(), ViewCohort, baseDate, &cached) {
		httputil.OK(w, cached)
		return
	}

	report, err := h.cohort.Analyze(r.Context(), baseDate)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	h.cache.Set(r.Context(), ViewCohort, baseDate, report)
	httputil.OK(w, report)
}

func (h *Handlers) dashboardHeatmap(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeParams(r, defaultHeatmapDays)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var cached lifecycle.HeatmapReport
	if h.cache.Get(r.Context(), ViewHeatmap, start+"_"+end, &cached) {
		httputil.OK(w, cached)
		return
	}

	report, err := h.heatmap.Build(r.Context(), start, end)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	h.cache.Set(r.Context(), ViewHeatmap, start+"_"+end, report)
	httputil.OK(w, report)
}

func (h *Handlers) dashboardInactivity(w http.ResponseWriter, r *http.Request) {
	targetDate, err := h.dateParam(r, "target_date", -1)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	report, err := h.inactivity.Detect(r.Context(), targetDate)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}

// dateParam reads a calendar-day query parameter, defaulting to today
// shifted by defaultOffset days.
func (h *Handlers) dateParam(r *http.Request, name string, defaultOffset int) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return h.now().AddDate(0, 0, defaultOffset).Format(lifecycle.DateFormat), nil
	}
	if _, err := lifecycle.ParseDate(v); err != nil {
		return "", fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, v)
	}
	return v, nil
}

// rangeParams reads start_date/end_date, swapping a reversed pair. A
// missing range defaults to the trailing defaultDays window ending today.
func (h *Handlers) rangeParams(r *http.Request, defaultDays int) (string, string, error) {
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")

	if start == "" && end == "" {
		today := h.now().Format(lifecycle.DateFormat)
		return lifecycle.AddDays(today, -(defaultDays - 1)), today, nil
	}
	if start == "" || end == "" {
		return "", "", fmt.Errorf("start_date and end_date must be supplied together")
	}
	if _, err := lifecycle.ParseDate(start); err != nil {
		return "", "", fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", start)
	}
	if _, err := lifecycle.ParseDate(end); err != nil {
		return "", "", fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", end)
	}
	if start > end {
		start, end = end, start
	}
	return start, end, nil
}

// optionalRange reads start_date/end_date when both are present, swapping
// a reversed pair; returns empty strings when neither is supplied.
func (h *Handlers) optionalRange(r *http.Request) (string, string, error) {
	if r.URL.Query().Get("start_date") == "" && r.URL.Query().Get("end_date") == "" {
		return "", "", nil
	}
	return h.rangeParams(r, 0)
}
