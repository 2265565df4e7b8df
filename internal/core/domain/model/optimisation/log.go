package optimisation

import "time"

// LogVersion is the layout version of LogEntry.
const LogVersion = 1

type EventType string

const (
	EventJobsIncluded      EventType = "jobs_included"
	EventJobsAssigned      EventType = "jobs_assigned"
	EventObjectsSkipped    EventType = "objects_skipped"
	EventDriverExcluded    EventType = "driver_excluded"
	EventDriverTimeChanged EventType = "driver_time_changed"
	EventSolverFailed      EventType = "solver_failed"
	EventRefreshStarted    EventType = "refresh_started"
	EventRefreshCompleted  EventType = "refresh_completed"
	EventNothingToRefresh  EventType = "nothing_to_refresh"
	EventJobsMoved         EventType = "jobs_moved"
	EventCreatedAfterMove  EventType = "created_after_move"
	EventSequenceChanged   EventType = "sequence_changed"
	EventMutationRejected  EventType = "mutation_rejected"
	EventRemoved           EventType = "removed"
	EventCustomersNotified EventType = "customers_notified"
)

// Skip reasons for EventObjectsSkipped.
const (
	SkipUnreachable = "unreachable"
	SkipNoSolution  = "no_solution"
)

// Driver exclusion reasons for EventDriverExcluded.
const (
	ExcludeDayOff         = "day_off"
	ExcludeOutOfHours     = "out_of_working_hours"
	ExcludeBreak          = "break"
	ExcludeNoDefaultHub   = "no_default_hub"
	ExcludeNoDefaultPoint = "no_default_point"
)

// Window changes for EventDriverTimeChanged.
const (
	ChangeMinTime = "min"
	ChangeMaxTime = "max"
)

// LogParams is the payload of a log entry. Only the fields relevant to the
// event type are set.
type LogParams struct {
	Count            int      `json:"count,omitempty"`
	ReoptimisedCount int      `json:"reoptimised_count,omitempty"`
	DriverName       string   `json:"driver_name,omitempty"`
	SourceDriver     string   `json:"source_driver,omitempty"`
	TargetDriver     string   `json:"target_driver,omitempty"`
	Initiator        string   `json:"initiator,omitempty"`
	RouteID          string   `json:"route_id,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Change           string   `json:"change,omitempty"`
	Time             string   `json:"time,omitempty"`
	Window           string   `json:"window,omitempty"`
	Operation        string   `json:"operation,omitempty"`
	Objects          []string `json:"objects,omitempty"`
	Unassign         bool     `json:"unassign,omitempty"`
}

// LogEntry is stored as data and rendered to text only when read.
type LogEntry struct {
	Version   int       `json:"version"`
	Event     EventType `json:"event"`
	Params    LogParams `json:"params"`
	CreatedAt time.Time `json:"created_at"`
}

func NewLogEntry(event EventType, params LogParams, at time.Time) LogEntry {
	return LogEntry{
		Version:   LogVersion,
		Event:     event,
		Params:    params,
		CreatedAt: at,
	}
}
