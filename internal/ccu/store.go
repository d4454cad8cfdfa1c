package ccu

import (
	"sync"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// TaskRegistry is an in-memory collection of every task the coordinator
// knows about, keyed by task id. It satisfies both auction.TaskStore and
// monitor.TaskStore.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task.Task
}

// NewTaskRegistry returns an empty TaskRegistry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[uuid.UUID]*task.Task)}
}

// Add registers t (or replaces the task currently stored under t.TaskID).
func (r *TaskRegistry) Add(t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.TaskID] = t
}

// GetTask returns the task named by taskID.
func (r *TaskRegistry) GetTask(taskID uuid.UUID) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, &ErrTaskNotFound{TaskID: taskID}
	}
	return t, nil
}

// UnallocatedTasks returns every task currently in status UNALLOCATED.
func (r *TaskRegistry) UnallocatedTasks() ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.Status == task.StatusUnallocated {
			out = append(out, t)
		}
	}
	return out, nil
}

// TimetableRegistry is an in-memory map of every robot's current timetable,
// keyed by robot id. It satisfies timetable.Store.
type TimetableRegistry struct {
	mu   sync.Mutex
	byID map[string]*timetable.Timetable
}

// NewTimetableRegistry returns an empty TimetableRegistry.
func NewTimetableRegistry() *TimetableRegistry {
	return &TimetableRegistry{byID: make(map[string]*timetable.Timetable)}
}

// FetchTimetable returns robotID's current timetable, or (nil, nil) if
// robotID hasn't been Seed-ed yet; callers (dispatch, monitor) already treat
// a nil timetable as "nothing to do for this robot".
func (r *TimetableRegistry) FetchTimetable(robotID string) (*timetable.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[robotID], nil
}

// StoreTimetable persists tt under its own RobotID.
func (r *TimetableRegistry) StoreTimetable(tt *timetable.Timetable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tt.RobotID] = tt
	return nil
}

// Seed registers tt as robotID's timetable, replacing any existing one; callers
// use this once per robot at startup before any task is allocated.
func (r *TimetableRegistry) Seed(robotID string, tt *timetable.Timetable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[robotID] = tt
}

// PoseRegistry is an in-memory map of each robot's last reported location,
// updated from inbound ASSIGNMENT-UPDATE envelopes. It satisfies
// dispatch.PoseSource.
type PoseRegistry struct {
	mu   sync.Mutex
	byID map[string]string
}

// NewPoseRegistry returns an empty PoseRegistry.
func NewPoseRegistry() *PoseRegistry {
	return &PoseRegistry{byID: make(map[string]string)}
}

// SetPose records robotID's current location.
func (r *PoseRegistry) SetPose(robotID, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[robotID] = location
}

// RobotPose returns robotID's last reported location.
func (r *PoseRegistry) RobotPose(robotID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pose, ok := r.byID[robotID]
	if !ok {
		return "", &ErrUnknownRobot{RobotID: robotID}
	}
	return pose, nil
}
