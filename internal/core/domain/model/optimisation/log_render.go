package optimisation

import (
	"fmt"

	"github.com/dustin/go-humanize/english"
)

// RenderLog turns stored entries into messages, oldest first.
func RenderLog(entries []LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if msg := e.Render(); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// Render returns the human readable message for the entry, or an empty string
// for entries of an unknown version.
func (e LogEntry) Render() string {
	if e.Version != LogVersion {
		return ""
	}
	p := e.Params

	switch e.Event {
	case EventJobsIncluded:
		return fmt.Sprintf("%s %s included into Optimisation", jobs(p.Count), wasWere(p.Count))
	case EventJobsAssigned:
		msg := fmt.Sprintf("%d new %s %s assigned to %s during the Optimisation",
			p.Count, english.PluralWord(p.Count, "job", ""), wasWere(p.Count), p.DriverName)
		if p.ReoptimisedCount > 0 {
			msg += fmt.Sprintf(" and %s %s re-optimised", jobs(p.ReoptimisedCount), wasWere(p.ReoptimisedCount))
		}
		return msg
	case EventObjectsSkipped:
		return renderSkipped(p)
	case EventDriverExcluded:
		return renderExcluded(p)
	case EventDriverTimeChanged:
		return fmt.Sprintf("Change %s time to %s for driver %s by driver break %s", p.Change, p.Time, p.DriverName, p.Window)
	case EventSolverFailed:
		return fmt.Sprintf("Optimisation failed: %s", p.Reason)
	case EventRefreshStarted:
		return "Refresh of the Optimisation started"
	case EventRefreshCompleted:
		return fmt.Sprintf("Refresh of the Optimisation completed. %s %s added", jobs(p.Count), wasWere(p.Count))
	case EventNothingToRefresh:
		return "Nothing to refresh. Everything is already optimised"
	case EventJobsMoved:
		return fmt.Sprintf("Moved %s from route of driver %s to route of driver %s by %s",
			jobs(p.Count), p.SourceDriver, p.TargetDriver, p.Initiator)
	case EventCreatedAfterMove:
		return fmt.Sprintf("Optimisation created after moving jobs from another driver by %s", p.Initiator)
	case EventSequenceChanged:
		return fmt.Sprintf("Sequence of route %s for %s changed by %s", p.RouteID, p.DriverName, p.Initiator)
	case EventMutationRejected:
		return fmt.Sprintf("Operation %s was rejected: %s", p.Operation, p.Reason)
	case EventRemoved:
		if !p.Unassign {
			return fmt.Sprintf("Optimisation was removed by %s", p.Initiator)
		}
		return fmt.Sprintf("Optimisation was removed by %s. %s %s unassigned", p.Initiator, jobs(p.Count), wasWere(p.Count))
	case EventCustomersNotified:
		return "Customers were notified about the upcoming jobs!"
	default:
		return ""
	}
}

func renderSkipped(p LogParams) string {
	switch p.Reason {
	case SkipUnreachable:
		return fmt.Sprintf("%s left out of the Optimisation. These jobs are not accessible by geographical reasons", jobs(p.Count))
	default:
		return fmt.Sprintf("%s left out of the Optimisation. There was no feasible place for them in the routes", jobs(p.Count))
	}
}

func renderExcluded(p LogParams) string {
	switch p.Reason {
	case ExcludeDayOff:
		return fmt.Sprintf("Driver %s has day off and will be removed from the Optimisation", p.DriverName)
	case ExcludeOutOfHours:
		return fmt.Sprintf("Driver %s is unavailable during the Optimisation working hours and will be removed", p.DriverName)
	case ExcludeBreak:
		return fmt.Sprintf("Exclude driver %s time by driver break %s", p.DriverName, p.Window)
	case ExcludeNoDefaultHub:
		return fmt.Sprintf("Driver %s has no default hub and will be removed from the Optimisation", p.DriverName)
	case ExcludeNoDefaultPoint:
		return fmt.Sprintf("Driver %s has no default point and will be removed from the Optimisation", p.DriverName)
	default:
		return fmt.Sprintf("Driver %s will be removed from the Optimisation", p.DriverName)
	}
}

func jobs(n int) string {
	return english.Plural(n, "job", "")
}

func wasWere(n int) string {
	return english.PluralWord(n, "was", "were")
}
