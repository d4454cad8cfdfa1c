package timetable

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
)

func newTask(earliestOffset, latestOffset time.Duration) *task.Task {
	return &task.Task{
		TaskID:         uuid.New(),
		EarliestPickup: time.Unix(0, 0).Add(earliestOffset),
		LatestPickup:   time.Unix(0, 0).Add(latestOffset),
		WorkTime:       task.Distribution{Mean: 60},
		TravelTime:     task.Distribution{Mean: 10},
	}
}

func TestTimetable_InsertTaskAt_buildsSchedule(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)

	t1 := newTask(100*time.Second, 200*time.Second)
	t2 := newTask(300*time.Second, 400*time.Second)

	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tt.InsertTaskAt(1, t2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tt.GetEarliestTask(); got == nil || got.TaskID != t1.TaskID {
		t.Fatalf("expected earliest task %v, got %v", t1.TaskID, got)
	}
	if got := tt.GetNextTask(t1); got == nil || got.TaskID != t2.TaskID {
		t.Fatalf("expected next task %v, got %v", t2.TaskID, got)
	}
	if got := tt.GetPreviousTask(t2); got == nil || got.TaskID != t1.TaskID {
		t.Fatalf("expected previous task %v, got %v", t1.TaskID, got)
	}
	if tt.GetPreviousTask(t1) != nil {
		t.Error("expected no task before the first task")
	}
	if tt.GetNextTask(t2) != nil {
		t.Error("expected no task after the last task")
	}
}

func TestTimetable_InsertTaskAt_rejectsInconsistentInsertion(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)

	t1 := newTask(100*time.Second, 200*time.Second)
	// an inverted window is inconsistent by construction
	t2 := newTask(50*time.Second, 10*time.Second)

	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tt.InsertTaskAt(1, t2); err != temporalnet.ErrNoSTPSolution {
		t.Fatalf("expected ErrNoSTPSolution, got %v", err)
	}

	// the rejected insertion must not have left t2 in the schedule
	if tt.HasTask(t2.TaskID) {
		t.Error("expected rejected insertion to leave the schedule unmodified")
	}
	if got := tt.GetEarliestTask(); got == nil || got.TaskID != t1.TaskID {
		t.Error("expected schedule to still contain only t1")
	}
}

func TestTimetable_GetStartTime(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)
	t1 := newTask(100*time.Second, 200*time.Second)

	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start, err := tt.GetStartTime(t1.TaskID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Before(ztp) {
		t.Errorf("expected start time on or after ZTP, got %v", start)
	}

	if _, err := tt.GetStartTime(uuid.New()); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTimetable_CheckIsTaskDelayed(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)
	t1 := newTask(100*time.Second, 200*time.Second)

	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pickup := temporalnet.Node{TaskID: t1.TaskID, Kind: task.Pickup}

	if delayed := tt.CheckIsTaskDelayed(t1, 150, pickup); delayed {
		t.Error("expected task not delayed when within the dispatchable window")
	}
	if t1.Delayed {
		t.Error("expected Delayed flag to remain false")
	}

	if delayed := tt.CheckIsTaskDelayed(t1, 1000, pickup); !delayed {
		t.Error("expected task delayed when past the dispatchable upper bound")
	}
	if !t1.Delayed {
		t.Error("expected Delayed flag to be set")
	}
}

func TestTimetable_RemoveTask(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)
	t1 := newTask(100*time.Second, 200*time.Second)
	t2 := newTask(300*time.Second, 400*time.Second)

	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tt.InsertTaskAt(1, t2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tt.RemoveTask(t1.TaskID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tt.HasTask(t1.TaskID) {
		t.Error("expected t1 to be removed")
	}
	if got := tt.GetEarliestTask(); got == nil || got.TaskID != t2.TaskID {
		t.Errorf("expected t2 to now be earliest, got %v", got)
	}

	if err := tt.RemoveTask(t1.TaskID); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound on double-removal, got %v", err)
	}

	if err := tt.RecomputeDispatchable(); err != nil {
		t.Fatalf("unexpected error recomputing dispatchable graph: %v", err)
	}
}

func TestTimetable_GetDGraphUpdate_limitsToPrefix(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)
	t1 := newTask(100*time.Second, 200*time.Second)
	t2 := newTask(300*time.Second, 400*time.Second)
	t3 := newTask(500*time.Second, 600*time.Second)

	for i, tk := range []*task.Task{t1, t2, t3} {
		if err := tt.InsertTaskAt(i, tk); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	update, err := tt.GetDGraphUpdate(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(update.Tasks) != 2 {
		t.Fatalf("expected 2 tasks in the update, got %d", len(update.Tasks))
	}
	if update.Tasks[0].TaskID != t1.TaskID || update.Tasks[1].TaskID != t2.TaskID {
		t.Error("expected the update to cover the first two queued tasks in order")
	}

	full, err := tt.GetDGraphUpdate(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(full.Tasks) != 3 {
		t.Errorf("expected n beyond schedule length to clamp to 3, got %d", len(full.Tasks))
	}
}

func TestTimetable_Clone_isIndependent(t *testing.T) {
	ztp := time.Unix(0, 0)
	tt := New("robot-1", ztp)
	t1 := newTask(100*time.Second, 200*time.Second)
	if err := tt.InsertTaskAt(0, t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clone := tt.Clone()
	if err := clone.RemoveTask(t1.TaskID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !tt.HasTask(t1.TaskID) {
		t.Fatal("expected original timetable to be unaffected by clone mutation")
	}
}
