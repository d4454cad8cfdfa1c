package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/config"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/ratelimit"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// reallocationRates bounds how often a single task may be re-queued for a
// fresh auction round: an STN inconsistency that keeps recurring (a planner
// estimate that never admits a consistent insertion anywhere, say) would
// otherwise thrash the auctioneer with the same task every tick.
var reallocationRates = map[time.Duration]int{time.Minute: 3}

// ActionKind names which of a task's two dispatched actions a progress
// report concerns, the input to the node-update rule.
type ActionKind int

const (
	// ActionFirst is a task's first action: the robot's pre-task travel to
	// the pickup location. Its ONGOING report updates the start timepoint.
	ActionFirst ActionKind = iota
	// ActionPickupToDelivery is the single action spanning pickup to
	// delivery. Its ONGOING report updates pickup; its COMPLETED report
	// updates delivery.
	ActionPickupToDelivery
)

// ActionStatus is the progress state of a single dispatched action.
type ActionStatus int

const (
	ActionOngoing ActionStatus = iota
	ActionCompleted
)

// Progress is one TaskStatus+ActionProgress report arriving for a task.
// Action/ActionStatus are only meaningful when TaskStatus is StatusOngoing;
// the node-update rule (spec §4.7.1) maps them to the STN timepoint to
// assign.
type Progress struct {
	TaskID       uuid.UUID
	RobotID      string
	TaskStatus   task.Status
	Action       ActionKind
	ActionStatus ActionStatus
	Timestamp    time.Time
}

// TaskStore is the external collaborator giving the monitor access to a
// task by id, mirroring Task.get_task in the original system.
type TaskStore interface {
	GetTask(taskID uuid.UUID) (*task.Task, error)
}

// Reallocator re-queues a task for a fresh auction round, the collaborator
// satisfied by an Auctioneer.
type Reallocator interface {
	Reallocate(t *task.Task) error
}

// RemovalPublisher announces that a task has been dropped from a robot's
// schedule, so the robot can discard it locally.
type RemovalPublisher interface {
	PublishRemoveTask(taskID uuid.UUID, status task.Status, robotID string) error
}

type pendingRemoval struct {
	task   *task.Task
	status task.Status
}

// Monitor consumes task-status and action-progress reports, keeps each
// robot's timetable in step with observed execution, and retires tasks that
// finish, are withdrawn, or are preempted. Its exported methods are guarded
// by a mutex so they are safe to call from a message-bus callback goroutine,
// even though the coordinator's own tick loop only ever calls them from one
// goroutine at a time.
type Monitor struct {
	Tasks      TaskStore
	Timetables timetable.Store
	Planner    planner.Planner
	Reallocate Reallocator
	Removals   RemovalPublisher
	Recovery   config.RecoveryMethod
	Logger     *logging.Logger

	mu             sync.Mutex
	pending        []pendingRemoval
	reallocLimiter *ratelimit.Limiter
}

// New returns a Monitor wired to its collaborators.
func New(tasks TaskStore, timetables timetable.Store, plnr planner.Planner, reallocator Reallocator, removals RemovalPublisher, recovery config.RecoveryMethod, logger *logging.Logger) *Monitor {
	return &Monitor{
		Tasks:          tasks,
		Timetables:     timetables,
		Planner:        plnr,
		Reallocate:     reallocator,
		Removals:       removals,
		Recovery:       recovery,
		Logger:         logger,
		reallocLimiter: ratelimit.NewLimiter(reallocationRates),
	}
}

// HandleTaskStatus processes one progress report, dispatching by its task
// status per spec §4.7.
func (m *Monitor) HandleTaskStatus(p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.Tasks.GetTask(p.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}

	switch p.TaskStatus {
	case task.StatusOngoing:
		return m.handleOngoing(t, p)
	case task.StatusCompleted:
		m.Logger.Debug().Str("task_id", t.TaskID.String()).Log(`queuing task for removal`)
		m.pending = append(m.pending, pendingRemoval{task: t, status: task.StatusCompleted})
		return nil
	case task.StatusUnallocated:
		return m.reallocate(t)
	case task.StatusPreempted:
		if t.Status == task.StatusPreempted {
			m.Logger.Warning().Str("task_id", t.TaskID.String()).Log(`task is already preempted`)
			return nil
		}
		return m.removeTask(t, task.StatusPreempted)
	default:
		return nil
	}
}

// handleOngoing applies the node-update rule, persists the new timepoint,
// and re-tightens the dispatchable graph.
func (m *Monitor) handleOngoing(t *task.Task, p Progress) error {
	node, ok := ongoingNode(p)
	if !ok {
		return nil
	}

	tt, err := m.Timetables.FetchTimetable(p.RobotID)
	if err != nil {
		return err
	}
	if tt == nil {
		return nil
	}

	rTime := p.Timestamp.Sub(tt.ZTP).Seconds()
	tt.CheckIsTaskDelayed(t, rTime, node)
	if err := tt.UpdateTimepoint(rTime, node); err != nil {
		return err
	}

	// A task's actions arrive in order (start, then pickup, then delivery),
	// so the edge into node's predecessor is always already assigned by the
	// time node itself is; no separate "already executed" tracking is
	// needed.
	switch node.Kind {
	case task.Pickup:
		tt.ExecuteEdge(temporalnet.Node{TaskID: t.TaskID, Kind: task.Start}, node)
	case task.Delivery:
		tt.ExecuteEdge(temporalnet.Node{TaskID: t.TaskID, Kind: task.Pickup}, node)
	}

	if err := t.SetStatus(task.StatusOngoing); err != nil && t.Status != task.StatusOngoing {
		return err
	}

	if err := tt.Store(m.Timetables); err != nil {
		return err
	}

	m.Logger.Debug().Str("task_id", t.TaskID.String()).Str("robot_id", p.RobotID).Log(`updated timepoint`)

	next := tt.GetNextTask(t)
	return m.recomputeDispatchable(tt, next)
}

// ongoingNode applies the node-update rule (spec §4.7.1), naming the
// timepoint an ONGOING report's action maps to.
func ongoingNode(p Progress) (temporalnet.Node, bool) {
	switch {
	case p.Action == ActionFirst && p.ActionStatus == ActionOngoing:
		return temporalnet.Node{TaskID: p.TaskID, Kind: task.Start}, true
	case p.Action == ActionPickupToDelivery && p.ActionStatus == ActionOngoing:
		return temporalnet.Node{TaskID: p.TaskID, Kind: task.Pickup}, true
	case p.Action == ActionPickupToDelivery && p.ActionStatus == ActionCompleted:
		return temporalnet.Node{TaskID: p.TaskID, Kind: task.Delivery}, true
	default:
		return temporalnet.Node{}, false
	}
}

// Run drains the deferred-removal queue, retiring every COMPLETED task whose
// finish time has actually elapsed.
func (m *Monitor) Run(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining []pendingRemoval
	for _, p := range m.pending {
		if p.task.FinishTime.After(now) {
			remaining = append(remaining, p)
			continue
		}
		if err := m.removeTask(p.task, p.status); err != nil {
			return err
		}
	}
	m.pending = remaining
	return nil
}

// reallocate withdraws t from its current robot's timetable and re-queues
// it for a fresh auction round.
func (m *Monitor) reallocate(t *task.Task) error {
	if _, ok := m.reallocLimiter.Allow(t.TaskID); !ok {
		m.Logger.Warning().Str("task_id", t.TaskID.String()).Log(`reallocation rate exceeded, deferring to a later tick`)
		return nil
	}
	m.Logger.Warning().Str("task_id", t.TaskID.String()).Log(`re-allocating task`)
	if t.Status == task.StatusUnallocated {
		m.Logger.Warning().Str("task_id", t.TaskID.String()).Log(`task is already unallocated`)
		return nil
	}
	if err := m.removeTask(t, task.StatusUnallocated); err != nil {
		return err
	}
	t.UnassignRobots()
	return m.Reallocate.Reallocate(t)
}

// recover applies the configured recovery method to t, the task found
// inconsistent by a dispatchable-graph recomputation.
func (m *Monitor) recover(t *task.Task) error {
	switch m.Recovery {
	case config.RecoveryMethodPreempt:
		return m.removeTask(t, task.StatusPreempted)
	case config.RecoveryMethodReallocate:
		return m.reallocate(t)
	default:
		return nil
	}
}

// removeTask drops t from every robot it's assigned to, handling the
// position-1 special case and refreshing the pre-task constraint left
// behind, then publishes the removal and re-tightens the dispatchable
// graph.
func (m *Monitor) removeTask(t *task.Task, status task.Status) error {
	m.Logger.Warning().Str("task_id", t.TaskID.String()).Str("status", status.String()).Log(`removing task from timetable`)

	for _, robotID := range t.AssignedRobots {
		tt, err := m.Timetables.FetchTimetable(robotID)
		if err != nil {
			return err
		}
		if tt == nil || !tt.HasTask(t.TaskID) {
			return &ErrTaskNotFound{TaskID: t.TaskID, RobotID: robotID}
		}

		prev := tt.GetPreviousTask(t)
		next := tt.GetNextTask(t)
		earliest := tt.GetEarliestTask()

		if earliest != nil && earliest.TaskID == t.TaskID && next != nil {
			if err := m.removeFirstTask(t, next, status, tt); err != nil {
				return err
			}
		} else if err := tt.RemoveTask(t.TaskID); err != nil {
			return err
		}

		if prev != nil && next != nil {
			if err := m.updatePreTaskConstraint(prev, next, tt); err != nil {
				return err
			}
		}

		if err := tt.Store(m.Timetables); err != nil {
			return err
		}

		if err := t.SetStatus(status); err != nil && t.Status != status {
			return err
		}
		if err := m.Removals.PublishRemoveTask(t.TaskID, status, robotID); err != nil {
			return err
		}
		if err := m.recomputeDispatchable(tt, next); err != nil {
			return err
		}
	}
	return nil
}

// removeFirstTask implements the position-1 deletion rule: propagate t's
// delivery earliest time (COMPLETED) or t's start earliest time (otherwise)
// forward as next's start earliest, in both networks, before dropping t.
func (m *Monitor) removeFirstTask(t, next *task.Task, status task.Status, tt *timetable.Timetable) error {
	var node temporalnet.Node
	if status == task.StatusCompleted {
		node = temporalnet.Node{TaskID: t.TaskID, Kind: task.Delivery}
	} else {
		node = temporalnet.Node{TaskID: t.TaskID, Kind: task.Start}
	}

	earliest, ok := tt.STN.GetTime(node, true)
	if !ok {
		earliest = 0
	}

	nextStart := temporalnet.Node{TaskID: next.TaskID, Kind: task.Start}
	tt.STN.SetBound(temporalnet.Z, nextStart, earliest)
	tt.STN.SetBound(nextStart, temporalnet.Z, -earliest)

	if dispatchStart, ok := tt.Dispatchable.GetTime(nextStart, true); !ok || dispatchStart < earliest {
		tt.Dispatchable.SetBound(temporalnet.Z, nextStart, earliest)
		tt.Dispatchable.SetBound(nextStart, temporalnet.Z, -earliest)
	}

	return tt.RemoveTask(t.TaskID)
}

// updatePreTaskConstraint refreshes the travel_time constraint between prev
// (now the schedule's true predecessor) and next (now its true successor),
// and rebuilds next's STN/dispatchable edges to reflect it.
func (m *Monitor) updatePreTaskConstraint(prev, next *task.Task, tt *timetable.Timetable) error {
	m.Logger.Debug().Str("task_id", next.TaskID.String()).Log(`refreshing pre-task constraint`)

	estimate, err := m.Planner.EstimateTravel(prev.DeliveryLocation, next.PickupLocation)
	if err != nil {
		return err
	}
	next.UpdateTravelTime(estimate.Mean, estimate.Variance)
	return tt.Rebuild()
}

// recomputeDispatchable re-tightens tt's dispatchable graph, recovering
// next per the configured recovery method if the result is inconsistent.
func (m *Monitor) recomputeDispatchable(tt *timetable.Timetable, next *task.Task) error {
	if tt.Empty() {
		return nil
	}

	if err := tt.RecomputeDispatchable(); err != nil {
		if err != temporalnet.ErrNoSTPSolution {
			return err
		}
		m.Logger.Warning().Str("robot_id", tt.RobotID).Log(`temporal network is inconsistent`)
		if next != nil {
			return m.recover(next)
		}
		return nil
	}
	return tt.Store(m.Timetables)
}
