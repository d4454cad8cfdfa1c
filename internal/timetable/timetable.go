package timetable

import (
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
)

// Timetable is a single robot's schedule: an ordered task sequence plus the
// raw STN and the dispatchable graph derived from it, both anchored at ZTP.
type Timetable struct {
	RobotID string
	ZTP     time.Time

	STN          *temporalnet.Network
	Dispatchable *temporalnet.Network

	order []uuid.UUID
	tasks map[uuid.UUID]*task.Task
}

// New returns an empty timetable for robotID, anchored at ztp.
func New(robotID string, ztp time.Time) *Timetable {
	return &Timetable{
		RobotID:      robotID,
		ZTP:          ztp,
		STN:          temporalnet.NewNetwork(),
		Dispatchable: temporalnet.NewNetwork(),
		tasks:        make(map[uuid.UUID]*task.Task),
	}
}

// Clone deep-copies the timetable, used by a bidder to try a candidate
// insertion without disturbing the robot's live schedule.
func (tt *Timetable) Clone() *Timetable {
	out := &Timetable{
		RobotID:      tt.RobotID,
		ZTP:          tt.ZTP,
		STN:          tt.STN.Clone(),
		Dispatchable: tt.Dispatchable.Clone(),
		order:        append([]uuid.UUID(nil), tt.order...),
		tasks:        make(map[uuid.UUID]*task.Task, len(tt.tasks)),
	}
	for id, t := range tt.tasks {
		clone := *t
		out.tasks[id] = &clone
	}
	return out
}

// Schedule returns the ordered tasks currently on the timetable.
func (tt *Timetable) Schedule() []*task.Task {
	out := make([]*task.Task, len(tt.order))
	for i, id := range tt.order {
		out[i] = tt.tasks[id]
	}
	return out
}

// HasTask reports whether taskID is present in the schedule.
func (tt *Timetable) HasTask(taskID uuid.UUID) bool {
	_, ok := tt.tasks[taskID]
	return ok
}

// GetTask returns the task at the given 1-indexed position, or nil if
// position is out of range.
func (tt *Timetable) GetTask(position int) *task.Task {
	if position < 1 || position > len(tt.order) {
		return nil
	}
	return tt.tasks[tt.order[position-1]]
}

// GetEarliestTask returns the task at position 1 (the next task a robot will
// execute), or nil if the schedule is empty.
func (tt *Timetable) GetEarliestTask() *task.Task {
	return tt.GetTask(1)
}

func (tt *Timetable) indexOf(taskID uuid.UUID) int {
	for i, id := range tt.order {
		if id == taskID {
			return i
		}
	}
	return -1
}

// GetPreviousTask returns the task immediately preceding t in the schedule,
// or nil if t is first, absent, or unknown.
func (tt *Timetable) GetPreviousTask(t *task.Task) *task.Task {
	if t == nil {
		return nil
	}
	i := tt.indexOf(t.TaskID)
	if i <= 0 {
		return nil
	}
	return tt.tasks[tt.order[i-1]]
}

// GetNextTask returns the task immediately following t in the schedule, or
// nil if t is last, absent, or unknown.
func (tt *Timetable) GetNextTask(t *task.Task) *task.Task {
	if t == nil {
		return nil
	}
	i := tt.indexOf(t.TaskID)
	if i < 0 || i+1 >= len(tt.order) {
		return nil
	}
	return tt.tasks[tt.order[i+1]]
}

// GetStartTime returns the absolute start time of taskID, computed as
// ZTP + the dispatchable graph's earliest bound at its start node.
func (tt *Timetable) GetStartTime(taskID uuid.UUID) (time.Time, error) {
	if !tt.HasTask(taskID) {
		return time.Time{}, ErrTaskNotFound
	}
	node := temporalnet.Node{TaskID: taskID, Kind: task.Start}
	earliest, ok := tt.Dispatchable.GetTime(node, true)
	if !ok {
		return time.Time{}, ErrTaskNotFound
	}
	return tt.ZTP.Add(time.Duration(earliest * float64(time.Second))), nil
}

// CheckIsTaskDelayed compares rTime (seconds relative to ZTP, as observed
// from a progress report) against the dispatchable graph's upper bound at
// node, sets t.Delayed accordingly, and returns the resulting flag.
func (tt *Timetable) CheckIsTaskDelayed(t *task.Task, rTime float64, node temporalnet.Node) bool {
	latest, ok := tt.Dispatchable.GetTime(node, false)
	if !ok {
		return t.Delayed
	}
	t.Delayed = rTime > latest
	return t.Delayed
}

// UpdateTimepoint force-assigns rTime (seconds relative to ZTP) to node in
// both the STN and the dispatchable graph, as observed execution progress
// arrives. Uses force=true: an inconsistency surfaces later, at the next
// dispatchable-graph recomputation, rather than being silently rejected here.
func (tt *Timetable) UpdateTimepoint(rTime float64, node temporalnet.Node) error {
	if err := tt.STN.AssignTimepoint(node, rTime, true); err != nil {
		return err
	}
	return tt.Dispatchable.AssignTimepoint(node, rTime, true)
}

// ExecuteEdge tightens the edge between from and to in both networks to the
// already-observed difference between them, recording that the segment's
// actual duration is now known with zero remaining slack.
func (tt *Timetable) ExecuteEdge(from, to temporalnet.Node) {
	tt.STN.ExecuteEdge(from, to)
	tt.Dispatchable.ExecuteEdge(from, to)
}

// RemoveTask drops taskID from the schedule and both temporal networks. It
// does not recompute the dispatchable graph's closure; callers that need a
// tightened dispatchable graph after removal should follow up with
// RecomputeDispatchable.
func (tt *Timetable) RemoveTask(taskID uuid.UUID) error {
	if !tt.HasTask(taskID) {
		return ErrTaskNotFound
	}
	i := tt.indexOf(taskID)
	tt.order = append(tt.order[:i:i], tt.order[i+1:]...)
	delete(tt.tasks, taskID)
	if err := tt.STN.RemoveTask(taskID); err != nil {
		return err
	}
	if tt.Dispatchable.HasTask(taskID) {
		if err := tt.Dispatchable.RemoveTask(taskID); err != nil {
			return err
		}
	}
	return nil
}

// InsertTaskAt splices t into the schedule at the given 0-indexed position
// (0 means first), then rebuilds the STN from the full ordered task sequence
// and recomputes the dispatchable graph. If the resulting network is
// inconsistent, the timetable is left unmodified and ErrNoSTPSolution (from
// temporalnet) is returned, letting a bidder discard the candidate.
func (tt *Timetable) InsertTaskAt(position int, t *task.Task) error {
	if position < 0 {
		position = 0
	}
	if position > len(tt.order) {
		position = len(tt.order)
	}

	order := make([]uuid.UUID, 0, len(tt.order)+1)
	order = append(order, tt.order[:position]...)
	order = append(order, t.TaskID)
	order = append(order, tt.order[position:]...)

	ordered := make([]*task.Task, len(order))
	for i, id := range order {
		if id == t.TaskID {
			ordered[i] = t
			continue
		}
		ordered[i] = tt.tasks[id]
	}

	stn := temporalnet.BuildFromTasks(ordered, tt.ZTP)
	dispatchable, err := temporalnet.ComputeDispatchableGraph(stn)
	if err != nil {
		return err
	}

	tt.order = order
	tt.tasks[t.TaskID] = t
	tt.STN = stn
	tt.Dispatchable = dispatchable
	return nil
}

// RecomputeDispatchable rebuilds the dispatchable graph from the current STN,
// mirroring the monitor's periodic re-tightening after execution progress or
// a plain task removal changes the STN's bounds.
func (tt *Timetable) RecomputeDispatchable() error {
	dispatchable, err := temporalnet.ComputeDispatchableGraph(tt.STN)
	if err != nil {
		return err
	}
	tt.Dispatchable = dispatchable
	return nil
}

// Empty reports whether the timetable currently holds no tasks.
func (tt *Timetable) Empty() bool {
	return len(tt.order) == 0
}

// Rebuild reconstructs the STN and dispatchable graph from the current task
// order, for a caller that has mutated a scheduled task's constraints (e.g.
// refreshing a travel_time estimate) in place and needs that change
// reflected without re-splicing the schedule via InsertTaskAt.
func (tt *Timetable) Rebuild() error {
	ordered := make([]*task.Task, len(tt.order))
	for i, id := range tt.order {
		ordered[i] = tt.tasks[id]
	}

	stn := temporalnet.BuildFromTasks(ordered, tt.ZTP)
	dispatchable, err := temporalnet.ComputeDispatchableGraph(stn)
	if err != nil {
		return err
	}

	tt.STN = stn
	tt.Dispatchable = dispatchable
	return nil
}

// DGraphUpdate is the prefix sub-schedule sent to a robot: the first n
// queued tasks' temporal networks, self-contained and independently
// dispatchable.
type DGraphUpdate struct {
	RobotID      string
	ZTP          time.Time
	STN          *temporalnet.Network
	Dispatchable *temporalnet.Network
	Tasks        []*task.Task
}

// GetDGraphUpdate builds a prefix sub-graph covering at most n queued tasks,
// recomputed from scratch so it is independently dispatchable rather than a
// view into the live timetable.
func (tt *Timetable) GetDGraphUpdate(n int) (*DGraphUpdate, error) {
	if n > len(tt.order) {
		n = len(tt.order)
	}
	prefix := make([]*task.Task, n)
	for i := 0; i < n; i++ {
		prefix[i] = tt.tasks[tt.order[i]]
	}

	stn := temporalnet.BuildFromTasks(prefix, tt.ZTP)
	dispatchable, err := temporalnet.ComputeDispatchableGraph(stn)
	if err != nil {
		return nil, err
	}

	return &DGraphUpdate{
		RobotID:      tt.RobotID,
		ZTP:          tt.ZTP,
		STN:          stn,
		Dispatchable: dispatchable,
		Tasks:        prefix,
	}, nil
}

// Store is the external persistence collaborator a Timetable is saved to and
// loaded from; this module only defines the contract, per the planner
// interface pattern used elsewhere for out-of-scope collaborators.
type Store interface {
	FetchTimetable(robotID string) (*Timetable, error)
	StoreTimetable(tt *Timetable) error
}

// Fetch loads robotID's timetable from store.
func Fetch(store Store, robotID string) (*Timetable, error) {
	return store.FetchTimetable(robotID)
}

// Store persists tt via store.
func (tt *Timetable) Store(store Store) error {
	return store.StoreTimetable(tt)
}
