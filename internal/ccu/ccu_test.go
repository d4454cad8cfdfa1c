package ccu

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/fleet-auction/internal/auction"
	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/config"
	"github.com/joeycumines/fleet-auction/internal/dispatch"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/messaging/inproc"
	"github.com/joeycumines/fleet-auction/internal/monitor"
	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

func testLogger() *logging.Logger {
	return logging.New(logiface.LevelTrace)
}

type fixedPlanner struct{ mean, variance float64 }

func (p fixedPlanner) EstimateTravel(from, to string) (planner.Estimate, error) {
	return planner.Estimate{Mean: p.mean, Variance: p.variance}, nil
}

func newCoordinatorForRouteTests(t *testing.T, bus messaging.Bus, ztp time.Time) *Coordinator {
	t.Helper()
	tasks := NewTaskRegistry()
	timetables := NewTimetableRegistry()
	timetables.Seed("robot-1", timetable.New("robot-1", ztp))
	poses := NewPoseRegistry()
	poses.SetPose("robot-1", "depot")
	pub := NewBusPublisher(bus)

	auctioneer := auction.New([]string{"robot-1"}, 5*time.Second, 300*time.Second, false, ztp, tasks, timetables, pub, testLogger())
	dispatcher := dispatch.New([]string{"robot-1"}, 300*time.Second, 1, fixedPlanner{mean: 10}, poses, timetables, pub, pub, testLogger())
	mon := monitor.New(tasks, timetables, fixedPlanner{mean: 10}, auctioneer, pub, config.RecoveryMethodReallocate, testLogger())

	c := New(time.Second, bus, "coordinator", auctioneer, dispatcher, mon, pub, testLogger())
	c.Publisher.SetNow(ztp)
	return c
}

func TestCoordinator_RouteBidForwardsToAuctioneer(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	taskID := uuid.New()
	payload := messaging.BidPayload{
		RoundID:        "round-1",
		RobotID:        "robot-1",
		TaskID:         taskID,
		InsertionPoint: 0,
		Metrics:        messaging.MetricsPayload{Temporal: 42},
	}
	env, err := messaging.NewEnvelope(messaging.TypeBid, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.route(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No direct observable on Auctioneer's open round without an opened
	// round; ProcessBid only records into whatever round is current, so the
	// call completing without error or panic is the behavior under test
	// here (route() decoding and forwarding correctly).
}

func TestCoordinator_RouteTaskStatusForwardsToMonitor(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	taskID := uuid.New()
	tsk := &task.Task{TaskID: taskID, Status: task.StatusDispatched, PickupLocation: "a", DeliveryLocation: "b", EarliestPickup: ztp, LatestPickup: ztp.Add(time.Hour)}
	c.Auctioneer.Tasks.(*TaskRegistry).Add(tsk)

	tt, err := c.Dispatcher.Timetables.FetchTimetable("robot-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tt.InsertTaskAt(0, tsk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tt.Store(c.Dispatcher.Timetables); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := messaging.TaskStatusPayload{
		TaskID:     taskID,
		RobotID:    "robot-1",
		TaskStatus: task.StatusOngoing,
		Progress: messaging.TaskProgressPayload{
			ActionType:   messaging.ActionTypeRobotToPickup,
			ActionStatus: messaging.ActionStatusPayload{Status: messaging.ActionStatusNameOngoing},
		},
	}
	env, err := messaging.NewEnvelope(messaging.TypeTaskStatus, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.route(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCoordinator_RouteAssignmentUpdateSetsPose(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	payload := messaging.AssignmentUpdatePayload{RobotID: "robot-1", Location: "loading-bay"}
	env, err := messaging.NewEnvelope(messaging.TypeAssignmentUpdate, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.route(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	poses := c.Dispatcher.Poses.(*PoseRegistry)
	pose, err := poses.RobotPose("robot-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pose != "loading-bay" {
		t.Fatalf("expected pose to be updated to %q, got %q", "loading-bay", pose)
	}
}

func TestCoordinator_RouteUnknownTypeIsIgnored(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	env, err := messaging.NewEnvelope(messaging.MessageType("SOMETHING-ELSE"), ztp, struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.route(env); err != nil {
		t.Fatalf("expected an unroutable envelope to be logged, not errored, got %v", err)
	}
}

func TestCoordinator_HandleAcknowledgmentCountsBeforeInsertion(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	taskID := uuid.New()
	tsk := &task.Task{TaskID: taskID, Status: task.StatusUnallocated, PickupLocation: "a", DeliveryLocation: "b", EarliestPickup: ztp.Add(time.Hour), LatestPickup: ztp.Add(2 * time.Hour)}
	c.Auctioneer.Tasks.(*TaskRegistry).Add(tsk)

	// Drive a full round so the auctioneer has a winning bid recorded,
	// matching what handleAcknowledgment expects to find in play.
	if err := c.Auctioneer.AnnounceTask(ztp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Auctioneer.ProcessBid("robot-1", &bidder.Bid{
		RobotID:        "robot-1",
		TaskID:         taskID,
		RoundID:        "round-1",
		InsertionPoint: 0,
		TemporalMetric: 1,
	})
	if err := c.Auctioneer.Run(ztp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := messaging.TaskContractAcknowledgementPayload{
		TaskID:  taskID,
		RobotID: "robot-1",
		Accept:  true,
		NTasks:  1,
	}
	if err := c.handleAcknowledgment(payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tt, err := c.Dispatcher.Timetables.FetchTimetable("robot-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tt.Schedule()) != 1 {
		t.Fatalf("expected the acknowledged task to have been inserted, got schedule %+v", tt.Schedule())
	}
}

func TestCoordinator_ProcessAllocationsDrainsAndLogs(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	if err := c.processAllocations(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Auctioneer.Allocations(); len(got) != 0 {
		t.Fatalf("expected no allocations on an idle auctioneer, got %+v", got)
	}
}

func TestCoordinator_TickAnnouncesPendingTaskOnSharedGroup(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	ch, unsub := bus.Subscribe(messaging.GroupTaskAllocation)
	defer unsub()

	c := newCoordinatorForRouteTests(t, bus, ztp)
	defer c.Close()

	taskID := uuid.New()
	tsk := &task.Task{
		TaskID:           taskID,
		Status:           task.StatusUnallocated,
		PickupLocation:   "a",
		DeliveryLocation: "b",
		// tick reads the wall clock, so the window is relative to time.Now.
		EarliestPickup: time.Now().Add(time.Hour),
		LatestPickup:   time.Now().Add(2 * time.Hour),
	}
	c.Auctioneer.Tasks.(*TaskRegistry).Add(tsk)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case env := <-ch:
		if env.Header.Type != messaging.TypeTaskAnnouncement {
			t.Fatalf("expected a task announcement, got %v", env.Header.Type)
		}
	default:
		t.Fatal("expected the coordinator's tick to announce the pending task")
	}
}
