package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/batch"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// PoseSource reports a robot's current location, the "from" endpoint of a
// freshly computed pre-task action (the robot may have moved since the
// winning bid was computed).
type PoseSource interface {
	RobotPose(robotID string) (string, error)
}

// TaskPublisher puts a DISPATCHED task contract on the wire for its
// assigned robot.
type TaskPublisher interface {
	PublishTask(t *task.Task, robotID string) error
}

// DGraphPublisher sends a robot its current prefix D-graph update.
type DGraphPublisher interface {
	PublishDGraphUpdate(update *timetable.DGraphUpdate) error
}

type dGraphJob struct {
	RobotID string
	Update  *timetable.DGraphUpdate
}

// Dispatcher watches every robot's earliest PLANNED task and releases it to
// DISPATCHED once its start time enters the freeze window, then keeps each
// robot's queued-task D-graph in sync as the coordinator discovers changes.
type Dispatcher struct {
	RobotIDs     []string
	FreezeWindow time.Duration
	NQueuedTasks int

	Planner    planner.Planner
	Poses      PoseSource
	Timetables timetable.Store
	Tasks      TaskPublisher
	DGraphs    DGraphPublisher
	Logger     *logging.Logger

	preTaskActions map[uuid.UUID]planner.PreTaskAction
	lastUpdate     map[string]*timetable.DGraphUpdate
	batcher        *batch.Batcher[dGraphJob]
}

// New returns a Dispatcher for robotIDs, with its own D-graph-update
// batcher: one flush covers every robot whose schedule changed within the
// same coordinator tick, rather than one goroutine dispatch per robot.
func New(robotIDs []string, freezeWindow time.Duration, nQueuedTasks int, plnr planner.Planner, poses PoseSource, timetables timetable.Store, tasks TaskPublisher, dgraphs DGraphPublisher, logger *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		RobotIDs:       append([]string(nil), robotIDs...),
		FreezeWindow:   freezeWindow,
		NQueuedTasks:   nQueuedTasks,
		Planner:        plnr,
		Poses:          poses,
		Timetables:     timetables,
		Tasks:          tasks,
		DGraphs:        dgraphs,
		Logger:         logger,
		preTaskActions: make(map[uuid.UUID]planner.PreTaskAction),
		lastUpdate:     make(map[string]*timetable.DGraphUpdate),
	}
	d.batcher = batch.NewBatcher[dGraphJob](
		&batch.BatcherConfig{MaxSize: len(robotIDs), FlushInterval: 50 * time.Millisecond},
		d.flushDGraphUpdates,
	)
	return d
}

// Close releases the Dispatcher's D-graph-update batcher.
func (d *Dispatcher) Close() error {
	return d.batcher.Close()
}

// flushDGraphUpdates is the batch.BatchProcessor publishing every coalesced
// D-graph update in one flush.
func (d *Dispatcher) flushDGraphUpdates(_ context.Context, jobs []dGraphJob) error {
	for _, j := range jobs {
		if err := d.DGraphs.PublishDGraphUpdate(j.Update); err != nil {
			return err
		}
		d.lastUpdate[j.RobotID] = j.Update
	}
	return nil
}

// isSchedulable reports whether startTime falls within the freeze window of
// now (including already overdue starts).
func (d *Dispatcher) isSchedulable(startTime, now time.Time) bool {
	return startTime.Sub(now) < d.FreezeWindow
}

// Run is one coordinator tick: dispatch every robot's earliest PLANNED task
// that has entered its freeze window, then push any resulting D-graph
// changes to the fleet.
func (d *Dispatcher) Run(now time.Time) error {
	for _, robotID := range d.RobotIDs {
		if err := d.dispatchRobot(robotID, now); err != nil {
			return err
		}
		if err := d.sendDGraphUpdate(robotID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) dispatchRobot(robotID string, now time.Time) error {
	tt, err := d.Timetables.FetchTimetable(robotID)
	if err != nil {
		return err
	}
	if tt == nil {
		return nil
	}

	t := tt.GetEarliestTask()
	if t == nil || t.Status != task.StatusPlanned {
		return nil
	}

	startTime, err := tt.GetStartTime(t.TaskID)
	if err != nil {
		return nil
	}
	if !d.isSchedulable(startTime, now) {
		return nil
	}

	t.Frozen = true

	if err := d.addPreTaskAction(t, robotID); err != nil {
		return err
	}

	return d.dispatchTask(t, robotID)
}

// addPreTaskAction recomputes t's pre-task action from the robot's current
// pose, since the robot may have moved since the winning bid was computed,
// and refreshes the task's travel_time constraint to match.
func (d *Dispatcher) addPreTaskAction(t *task.Task, robotID string) error {
	d.Logger.Debug().Str("task_id", t.TaskID.String()).Log(`adding pre-task action`)

	pose, err := d.Poses.RobotPose(robotID)
	if err != nil {
		return err
	}

	preAction, err := planner.GetPreTaskAction(d.Planner, pose, t.PickupLocation)
	if err != nil {
		return err
	}

	t.UpdateTravelTime(preAction.Estimate.Mean, preAction.Estimate.Variance)
	d.preTaskActions[t.TaskID] = preAction
	return nil
}

// dispatchTask publishes t to robotID and marks it DISPATCHED.
func (d *Dispatcher) dispatchTask(t *task.Task, robotID string) error {
	d.Logger.Debug().Str("task_id", t.TaskID.String()).Str("robot_id", robotID).Log(`dispatching task`)

	if err := d.Tasks.PublishTask(t, robotID); err != nil {
		return err
	}
	return t.SetStatus(task.StatusDispatched)
}

// sendDGraphUpdate submits robotID's current prefix D-graph update for
// publication, coalesced with any other robot's update this tick, skipping
// robots whose update hasn't changed since the last send.
func (d *Dispatcher) sendDGraphUpdate(robotID string) error {
	tt, err := d.Timetables.FetchTimetable(robotID)
	if err != nil {
		return err
	}
	if tt == nil {
		return nil
	}

	update, err := tt.GetDGraphUpdate(d.NQueuedTasks)
	if err != nil {
		return err
	}

	if sameDGraphUpdate(d.lastUpdate[robotID], update) {
		return nil
	}

	d.Logger.Debug().Str("robot_id", robotID).Log(`sending D-graph update`)

	_, err = d.batcher.Submit(context.Background(), dGraphJob{RobotID: robotID, Update: update})
	return err
}

// sameDGraphUpdate reports whether two D-graph updates carry the same
// queued task sequence and dispatchable timing, used to suppress redundant
// sends the way a deep-equality check on the previous update would.
func sameDGraphUpdate(a, b *timetable.DGraphUpdate) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Tasks) != len(b.Tasks) {
		return false
	}
	for i := range a.Tasks {
		if a.Tasks[i].TaskID != b.Tasks[i].TaskID {
			return false
		}
		for _, kind := range []task.TimepointKind{task.Start, task.Pickup, task.Delivery} {
			node := temporalnet.Node{TaskID: a.Tasks[i].TaskID, Kind: kind}
			at, aok := a.Dispatchable.GetTime(node, true)
			bt, bok := b.Dispatchable.GetTime(node, true)
			if aok != bok || at != bt {
				return false
			}
		}
	}
	return true
}
