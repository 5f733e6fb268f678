package lifecycle

// Store status codes as they appear on roster records and in the
// status-change event log.
const (
	StatusRegistered        = "registered"
	StatusSetupInProgress   = "setup_in_progress"
	StatusInstallCompleted  = "install_completed"
	StatusSuspended         = "suspended"
	StatusServiceTerminated = "service_terminated"
	StatusUnusedTerminated  = "unused_terminated"
)

// NoPriorStatus marks a status-change event with no previous state,
// i.e. a fresh registration. Upstream writes either "N/A" or nothing.
const NoPriorStatus = "N/A"

// statusSet is a fixed membership set over status codes.
type statusSet map[string]struct{}

func newStatusSet(statuses ...string) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// Has reports whether status is a member of the set.
func (s statusSet) Has(status string) bool {
	_, ok := s[status]
	return ok
}

// InstallCompletedForFunnel is the install-completed membership used by the
// daily funnel snapshot: terminal and defect statuses still count as having
// gone through install.
//
// InstallCompletedForDashboard is the membership used by the dashboard
// reports; it excludes terminated stores. The two sets intentionally
// disagree for terminated statuses and must stay separate. Each report
// names the set it reads.
var (
	InstallCompletedForFunnel = newStatusSet(
		StatusInstallCompleted,
		StatusSuspended,
		StatusServiceTerminated,
		StatusUnusedTerminated,
	)

	InstallCompletedForDashboard = newStatusSet(
		StatusInstallCompleted,
		StatusSuspended,
	)

	// Churned covers both termination paths.
	Churned = newStatusSet(
		StatusServiceTerminated,
		StatusUnusedTerminated,
	)
)

// IsFreshRegistration reports whether oldStatus marks an event with no
// prior state.
func IsFreshRegistration(oldStatus string) bool {
	return oldStatus == "" || oldStatus == NoPriorStatus
}
