package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// TaskAnnouncementPayload is the TASK-ANNOUNCEMENT wire schema: the round id,
// the fleet's shared ZTP, and every still-unallocated task.
type TaskAnnouncementPayload struct {
	RoundID string       `json:"round_id"`
	ZTP     time.Time    `json:"ztp"`
	Tasks   []*task.Task `json:"tasks"`
}

// MetricsPayload wraps a bid's scalar temporal score, matching the
// metrics:{temporal} shape of the BID/SOFT-BID wire schema.
type MetricsPayload struct {
	Temporal float64 `json:"temporal"`
}

// BidPayload is the BID/SOFT-BID wire schema.
type BidPayload struct {
	RoundID              string                `json:"round_id"`
	RobotID              string                `json:"robot_id"`
	TaskID               uuid.UUID             `json:"task_id"`
	InsertionPoint       int                   `json:"insertion_point"`
	Metrics              MetricsPayload        `json:"metrics"`
	AlternativeStartTime *time.Time            `json:"alternative_start_time,omitempty"`
	PreTaskAction        planner.PreTaskAction `json:"pre_task_action"`
}

// NoBidPayload is the NO-BID wire schema: one entry per task a robot could
// not insert anywhere in its schedule.
type NoBidPayload struct {
	RoundID string      `json:"round_id"`
	RobotID string      `json:"robot_id"`
	TaskIDs []uuid.UUID `json:"task_ids"`
}

// TaskContractPayload is the TASK-CONTRACT wire schema naming a round's
// winner.
type TaskContractPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	RobotID string    `json:"robot_id"`
}

// TaskContractAcknowledgementPayload is the
// TASK-CONTRACT-ACKNOWLEDGEMENT wire schema, the winning robot's
// accept/reject response.
type TaskContractAcknowledgementPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	RobotID string    `json:"robot_id"`
	Accept  bool      `json:"accept"`
	NTasks  int       `json:"n_tasks"`
}

// Action type names distinguishing a dispatched task's two actions on the
// wire, matching the original system's GoTo.type values.
const (
	ActionTypeRobotToPickup    = "ROBOT-TO-PICKUP"
	ActionTypePickupToDelivery = "PICKUP-TO-DELIVERY"
)

// Action status names for the action_status.status wire field.
const (
	ActionStatusNameOngoing   = "ONGOING"
	ActionStatusNameCompleted = "COMPLETED"
)

// ActionStatusPayload wraps an action's status string, matching the
// action_status:{status} shape of the TASK-STATUS wire schema.
type ActionStatusPayload struct {
	Status string `json:"status"`
}

// TaskProgressPayload is the task_progress field of TASK-STATUS. ActionType
// distinguishes which of a task's two dispatched actions the report
// concerns (the original system resolves this from the action_id via its
// task plan; this module has no task-plan store, so the type rides along
// directly).
type TaskProgressPayload struct {
	ActionID     uuid.UUID           `json:"action_id"`
	ActionType   string              `json:"action_type"`
	ActionStatus ActionStatusPayload `json:"action_status"`
}

// TaskStatusPayload is the TASK-STATUS wire schema, a robot's progress
// report consumed by the timetable monitor.
type TaskStatusPayload struct {
	TaskID     uuid.UUID           `json:"task_id"`
	RobotID    string              `json:"robot_id"`
	TaskStatus task.Status         `json:"task_status"`
	Progress   TaskProgressPayload `json:"task_progress"`
}

// RemoveTaskPayload is the REMOVE-TASK-FROM-SCHEDULE wire schema.
type RemoveTaskPayload struct {
	TaskID uuid.UUID   `json:"task_id"`
	Status task.Status `json:"status"`
}

// AssignmentUpdatePayload is the ASSIGNMENT-UPDATE wire schema: a robot
// reporting its current location, the dispatcher's PoseSource input.
type AssignmentUpdatePayload struct {
	RobotID  string `json:"robot_id"`
	Location string `json:"location"`
}

// NodeWindow is one timepoint's current earliest/latest bound in a
// DGRAPH-UPDATE's serialized temporal network; Earliest/Latest use Bound so
// an as-yet-unconstrained window (+/-Inf) still round-trips through JSON.
type NodeWindow struct {
	TaskID   uuid.UUID          `json:"task_id"`
	Kind     task.TimepointKind `json:"kind"`
	Earliest Bound              `json:"earliest"`
	Latest   Bound              `json:"latest"`
}

// GraphPayload is one temporal network (the STN, or the dispatchable graph
// derived from it) reduced to its non-anchor nodes' current windows.
type GraphPayload struct {
	Windows []NodeWindow `json:"windows"`
}

func graphPayload(net *temporalnet.Network) GraphPayload {
	nodes := net.Nodes()
	windows := make([]NodeWindow, 0, len(nodes))
	for _, n := range nodes {
		if n.IsZ() {
			continue
		}
		earliest, _ := net.GetTime(n, true)
		latest, _ := net.GetTime(n, false)
		windows = append(windows, NodeWindow{
			TaskID:   n.TaskID,
			Kind:     n.Kind,
			Earliest: Bound(earliest),
			Latest:   Bound(latest),
		})
	}
	return GraphPayload{Windows: windows}
}

// DGraphUpdatePayload is the DGRAPH-UPDATE wire schema: a robot's current
// prefix sub-schedule, self-contained and independently dispatchable.
type DGraphUpdatePayload struct {
	RobotID      string       `json:"robot_id"`
	ZTP          time.Time    `json:"ztp"`
	Tasks        []*task.Task `json:"tasks"`
	STN          GraphPayload `json:"stn"`
	Dispatchable GraphPayload `json:"dispatchable_graph"`
}

// NewDGraphUpdatePayload reduces update's two live Networks to their
// wire-safe window form.
func NewDGraphUpdatePayload(update *timetable.DGraphUpdate) *DGraphUpdatePayload {
	return &DGraphUpdatePayload{
		RobotID:      update.RobotID,
		ZTP:          update.ZTP,
		Tasks:        update.Tasks,
		STN:          graphPayload(update.STN),
		Dispatchable: graphPayload(update.Dispatchable),
	}
}
