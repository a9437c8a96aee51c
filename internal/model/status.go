package model

// TaskStatus is a CrawlTask's position in the pipeline state machine.
type TaskStatus string

const (
	StatusPending      TaskStatus = "pending"
	StatusQueued       TaskStatus = "queued"
	StatusCrawling     TaskStatus = "crawling"
	StatusDownloaded   TaskStatus = "downloaded"
	StatusQueuedParse  TaskStatus = "queued_parse"
	StatusParsing      TaskStatus = "parsing"
	StatusCompleted    TaskStatus = "completed"
	StatusFailed       TaskStatus = "failed"
	StatusPaused       TaskStatus = "paused"
	StatusCancelled    TaskStatus = "cancelled"
)

// activeStates are the non-terminal, non-paused states a task can be
// reclaimed out of by the dispatcher's lease sweep.
var activeStates = map[TaskStatus]bool{
	StatusQueued:      true,
	StatusCrawling:    true,
	StatusQueuedParse: true,
	StatusParsing:     true,
}

// terminalStates never transition except via an explicit restart operation.
var terminalStates = map[TaskStatus]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// transitions enumerates every legal (from, to) pair from spec §4.4's
// transition table, including the admin-triggered ones (pause/resume/
// cancel/restart). internal/controlplane passes each op's own from-set to
// store.Transition, which checks it against this table.
var transitions = map[TaskStatus]map[TaskStatus]bool{
	StatusPending:     {StatusQueued: true, StatusPaused: true, StatusCancelled: true},
	StatusQueued:      {StatusCrawling: true, StatusPending: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusCrawling:    {StatusDownloaded: true, StatusPending: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusDownloaded:  {StatusQueuedParse: true, StatusPending: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusQueuedParse: {StatusParsing: true, StatusPending: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusParsing:     {StatusCompleted: true, StatusPending: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusCompleted:   {StatusPending: true}, // recurrence materializes a new row; restart-full also lands here
	StatusFailed:      {StatusPending: true, StatusDownloaded: true},
	StatusPaused:      {StatusPending: true, StatusCancelled: true},
	StatusCancelled:   {},
}

// ValidateTransition reports whether moving a task from `from` to `to` is
// legal per the state machine. store.Transition calls it for every
// candidate from-state, admin operations included, and accepts the call if
// any one of them is legal.
func ValidateTransition(from, to TaskStatus) error {
	allowed, ok := transitions[from]
	if !ok || !allowed[to] {
		return &transitionError{from: from, to: to}
	}
	return nil
}

type transitionError struct {
	from, to TaskStatus
}

func (e *transitionError) Error() string {
	return "illegal transition from " + string(e.from) + " to " + string(e.to)
}

// IsTerminal reports whether status is one no further worker-driven
// transition can leave (only admin restarts move out of it).
func IsTerminal(status TaskStatus) bool {
	return terminalStates[status]
}

// IsActive reports whether status is one subject to lease reclaim: queued,
// crawling, queued_parse or parsing (not pending, downloaded, paused, or a
// terminal state).
func IsActive(status TaskStatus) bool {
	return activeStates[status]
}

// IsSchedulable reports whether a task in this status is eligible to be
// picked up by the dispatcher's fetch-due step.
func IsSchedulable(status TaskStatus) bool {
	return status == StatusPending
}

// TerminalStatuses returns every status IsTerminal reports true for, as a
// concrete slice for callers building a SQL IN clause.
func TerminalStatuses() []TaskStatus {
	out := make([]TaskStatus, 0, len(terminalStates))
	for s := range terminalStates {
		out = append(out, s)
	}
	return out
}

// ActiveStatuses returns every status IsActive reports true for, as a
// concrete slice for callers building a SQL IN clause.
func ActiveStatuses() []TaskStatus {
	out := make([]TaskStatus, 0, len(activeStates))
	for s := range activeStates {
		out = append(out, s)
	}
	return out
}
