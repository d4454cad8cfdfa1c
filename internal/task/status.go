package task

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a Task. The zero value is StatusUnallocated.
type Status int

const (
	StatusUnallocated Status = iota
	StatusAllocated
	StatusPlanned
	StatusDispatched
	StatusOngoing
	StatusCompleted
	StatusCanceled
	StatusAborted
	StatusPreempted
)

func (s Status) String() string {
	switch s {
	case StatusUnallocated:
		return "UNALLOCATED"
	case StatusAllocated:
		return "ALLOCATED"
	case StatusPlanned:
		return "PLANNED"
	case StatusDispatched:
		return "DISPATCHED"
	case StatusOngoing:
		return "ONGOING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCanceled:
		return "CANCELED"
	case StatusAborted:
		return "ABORTED"
	case StatusPreempted:
		return "PREEMPTED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// statusNames maps every wire name back to its Status, the inverse of String.
var statusNames = map[string]Status{
	"UNALLOCATED": StatusUnallocated,
	"ALLOCATED":   StatusAllocated,
	"PLANNED":     StatusPlanned,
	"DISPATCHED":  StatusDispatched,
	"ONGOING":     StatusOngoing,
	"COMPLETED":   StatusCompleted,
	"CANCELED":    StatusCanceled,
	"ABORTED":     StatusAborted,
	"PREEMPTED":   StatusPreempted,
}

// MarshalJSON renders s as its wire name, e.g. "ONGOING".
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses one of the wire names produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := statusNames[name]
	if !ok {
		return fmt.Errorf("task: unrecognized status %q", name)
	}
	*s = v
	return nil
}

// Terminal reports whether s has no legal outgoing transition: the task is
// removed from every timetable once it reaches one of these states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusAborted, StatusPreempted:
		return true
	default:
		return false
	}
}

// transitions encodes the monotone lifecycle from spec §3 and the
// re-allocation restriction from §9: only PLANNED or DISPATCHED tasks may
// return to UNALLOCATED; ONGOING tasks are never re-allocated.
var transitions = map[Status]map[Status]bool{
	StatusUnallocated: {StatusAllocated: true, StatusCanceled: true},
	StatusAllocated:    {StatusPlanned: true, StatusCanceled: true},
	StatusPlanned:      {StatusDispatched: true, StatusUnallocated: true, StatusPreempted: true, StatusCanceled: true},
	StatusDispatched:   {StatusOngoing: true, StatusUnallocated: true, StatusPreempted: true, StatusCanceled: true},
	StatusOngoing:      {StatusCompleted: true, StatusPreempted: true, StatusAborted: true},
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition. Terminal states never transition further.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	return allowed[next]
}

// ErrIllegalTransition is returned by Task.SetStatus when the requested move
// is not in the legal transition table.
type ErrIllegalTransition struct {
	From, To Status
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("task: illegal status transition %s -> %s", e.From, e.To)
}
