package temporalnet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/fleet-auction/internal/task"
)

func newTask(earliestOffset, latestOffset time.Duration, workMean float64) *task.Task {
	return &task.Task{
		TaskID:         uuid.New(),
		EarliestPickup: time.Unix(0, 0).Add(earliestOffset),
		LatestPickup:   time.Unix(0, 0).Add(latestOffset),
		WorkTime:       task.Distribution{Mean: workMean, Variance: 0},
		TravelTime:     task.Distribution{Mean: 10, Variance: 0},
	}
}

func TestBuildFromTasks_consistentSingleTask(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(100*time.Second, 200*time.Second, 60)

	net := BuildFromTasks([]*task.Task{tk}, ztp)
	if !net.IsConsistent() {
		t.Fatal("expected single-task network to be consistent")
	}

	pickup := Node{TaskID: tk.TaskID, Kind: task.Pickup}
	earliest, ok := net.GetTime(pickup, true)
	if !ok {
		t.Fatal("expected pickup node to exist")
	}
	if earliest != 100 {
		t.Errorf("expected earliest pickup time 100, got %v", earliest)
	}
}

func TestBuildFromTasks_inconsistentWhenPickupWindowInverted(t *testing.T) {
	ztp := time.Unix(0, 0)
	// latest before earliest: an infeasible window, by construction inconsistent.
	tk := newTask(200*time.Second, 100*time.Second, 60)

	net := BuildFromTasks([]*task.Task{tk}, ztp)
	if net.IsConsistent() {
		t.Fatal("expected inverted pickup window to be inconsistent")
	}
}

func TestComputeDispatchableGraph(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(100*time.Second, 200*time.Second, 60)
	net := BuildFromTasks([]*task.Task{tk}, ztp)

	dispatchable, err := ComputeDispatchableGraph(net)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pickup := Node{TaskID: tk.TaskID, Kind: task.Pickup}
	earliest, ok := dispatchable.GetTime(pickup, true)
	if !ok || earliest != 100 {
		t.Errorf("expected dispatchable earliest pickup 100, got %v, ok=%v", earliest, ok)
	}
}

func TestComputeDispatchableGraph_inconsistentReturnsErr(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(200*time.Second, 100*time.Second, 60)
	net := BuildFromTasks([]*task.Task{tk}, ztp)

	if _, err := ComputeDispatchableGraph(net); err != ErrNoSTPSolution {
		t.Fatalf("expected ErrNoSTPSolution, got %v", err)
	}
}

func TestNetwork_RemoveTask(t *testing.T) {
	ztp := time.Unix(0, 0)
	t1 := newTask(100*time.Second, 200*time.Second, 60)
	t2 := newTask(300*time.Second, 400*time.Second, 60)
	net := BuildFromTasks([]*task.Task{t1, t2}, ztp)

	if !net.HasTask(t1.TaskID) || !net.HasTask(t2.TaskID) {
		t.Fatal("expected both tasks present")
	}

	if err := net.RemoveTask(t1.TaskID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.HasTask(t1.TaskID) {
		t.Fatal("expected t1 to be removed")
	}
	if !net.HasTask(t2.TaskID) {
		t.Fatal("expected t2 to remain")
	}

	if err := net.RemoveTask(t1.TaskID); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound on double-removal, got %v", err)
	}
}

func TestNetwork_AssignTimepoint_idempotent(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(100*time.Second, 200*time.Second, 60)
	net := BuildFromTasks([]*task.Task{tk}, ztp)

	pickup := Node{TaskID: tk.TaskID, Kind: task.Pickup}

	if err := net.AssignTimepoint(pickup, 150, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := net.GetTime(pickup, true)

	// re-assigning the same timepoint must be a no-op on the resulting bound
	if err := net.AssignTimepoint(pickup, 150, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := net.GetTime(pickup, true)

	if first != second || first != 150 {
		t.Errorf("expected idempotent assignment to 150, got %v then %v", first, second)
	}
}

func TestNetwork_AssignTimepoint_nonForceRejectsInconsistent(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(100*time.Second, 200*time.Second, 60)
	net := BuildFromTasks([]*task.Task{tk}, ztp)

	pickup := Node{TaskID: tk.TaskID, Kind: task.Pickup}

	// outside the feasible window entirely
	err := net.AssignTimepoint(pickup, 1000, false)
	if err != ErrNoSTPSolution {
		t.Fatalf("expected ErrNoSTPSolution, got %v", err)
	}
	if !net.IsConsistent() {
		t.Fatal("expected network to be left untouched (still consistent) after rejected assignment")
	}
}

func TestNetwork_Clone_isIndependent(t *testing.T) {
	ztp := time.Unix(0, 0)
	tk := newTask(100*time.Second, 200*time.Second, 60)
	net := BuildFromTasks([]*task.Task{tk}, ztp)

	clone := net.Clone()
	if err := clone.RemoveTask(tk.TaskID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !net.HasTask(tk.TaskID) {
		t.Fatal("expected original network to be unaffected by clone mutation")
	}
}
