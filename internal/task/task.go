// Package task models the transportation task entity shared across the
// auction, dispatch, and monitor components, plus its status lifecycle.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimepointKind names one of the three temporal-network nodes a Task
// contributes.
type TimepointKind int

const (
	Start TimepointKind = iota
	Pickup
	Delivery
)

func (k TimepointKind) String() string {
	switch k {
	case Start:
		return "start"
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// timepointNames maps every wire name back to its TimepointKind, the inverse
// of String.
var timepointNames = map[string]TimepointKind{
	"start":    Start,
	"pickup":   Pickup,
	"delivery": Delivery,
}

// MarshalJSON renders k as its wire name, e.g. "pickup".
func (k TimepointKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses one of the wire names produced by MarshalJSON.
func (k *TimepointKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := timepointNames[name]
	if !ok {
		return fmt.Errorf("task: unrecognized timepoint kind %q", name)
	}
	*k = v
	return nil
}

// Distribution models a normally-distributed duration estimate, the shape
// returned by the path planner for travel and work time.
type Distribution struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Constraint is a named inter-timepoint constraint (travel_time, work_time)
// attached to a task, per spec §3 InterTimepointConstraint.
type Constraint struct {
	Name     string  `json:"name"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Task is the central entity allocated, scheduled, and dispatched by the
// coordinator and its per-robot bidders.
type Task struct {
	TaskID uuid.UUID `json:"task_id"`

	PickupLocation   string `json:"pickup_location"`
	DeliveryLocation string `json:"delivery_location"`

	EarliestPickup time.Time `json:"earliest_pickup_time"`
	LatestPickup   time.Time `json:"latest_pickup_time"`

	TravelTime Distribution `json:"travel_time"`
	WorkTime   Distribution `json:"work_time"`

	AssignedRobots []string `json:"assigned_robots"`

	Status Status `json:"status"`

	// StartTime/FinishTime are populated once the task is scheduled; they
	// mirror the dispatchable graph's start/delivery bounds at assignment
	// time and are refreshed by the timetable monitor as progress arrives.
	StartTime  time.Time `json:"start_time"`
	FinishTime time.Time `json:"finish_time"`

	// Delayed is set by the timetable monitor when an observed progress
	// timestamp exceeds the dispatchable upper bound at a node.
	Delayed bool `json:"delayed"`

	// Frozen marks a task as committed by the dispatcher: once true, the
	// task's pickup may no longer shift earlier.
	Frozen bool `json:"frozen"`
}

// SetStatus validates next against the current Status's legal-transition
// table before applying it.
func (t *Task) SetStatus(next Status) error {
	if !t.Status.CanTransitionTo(next) {
		return &ErrIllegalTransition{From: t.Status, To: next}
	}
	t.Status = next
	return nil
}

// UnassignRobots clears AssignedRobots, used when a task is re-queued for
// re-allocation.
func (t *Task) UnassignRobots() {
	t.AssignedRobots = nil
}

// UpdateTravelTime overwrites the travel_time constraint mean/variance,
// mirroring Task.update_inter_timepoint_constraint in the original system:
// the pre-task action (robot pose -> pickup) determines this edge, and it
// may be refreshed more than once before dispatch.
func (t *Task) UpdateTravelTime(mean, variance float64) {
	t.TravelTime = Distribution{Mean: mean, Variance: variance}
}
