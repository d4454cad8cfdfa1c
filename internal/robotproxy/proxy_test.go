package robotproxy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/config"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/messaging/inproc"
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

func newTestProxy(t *testing.T, bus messaging.Bus, ztp time.Time) *Proxy {
	t.Helper()
	rule, err := bidder.NewRule(config.BiddingRuleCompletionTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := &bidder.Bidder{
		RobotID:   "robot-1",
		Pose:      "depot",
		Rule:      rule,
		Planner:   fixedPlanner{mean: 10},
		Timetable: timetable.New("robot-1", ztp),
	}
	return New("robot-1", "coordinator", bus, b, testLogger())
}

func TestProxy_HandleAnnouncementSendsBidToCoordinator(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()

	ch, unsub := bus.Subscribe("coordinator")
	defer unsub()

	taskID := uuid.New()
	payload := messaging.TaskAnnouncementPayload{
		RoundID: "round-1",
		ZTP:     ztp,
		Tasks: []*task.Task{{
			TaskID:           taskID,
			Status:           task.StatusUnallocated,
			PickupLocation:   "a",
			DeliveryLocation: "b",
			EarliestPickup:   ztp,
			LatestPickup:     ztp.Add(time.Hour),
		}},
	}
	env, err := messaging.NewEnvelope(messaging.TypeTaskAnnouncement, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.handle(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-ch:
		if got.Header.Type != messaging.TypeBid {
			t.Fatalf("expected a bid, got %v", got.Header.Type)
		}
		var bid messaging.BidPayload
		if err := got.Decode(&bid); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if bid.TaskID != taskID || bid.RobotID != "robot-1" {
			t.Fatalf("unexpected bid payload: %+v", bid)
		}
	default:
		t.Fatal("expected a bid to be whispered to the coordinator")
	}

	if p.lastBid == nil || p.lastBid.TaskID != taskID {
		t.Fatalf("expected the proxy to remember its submitted bid")
	}
	if _, ok := p.pending[taskID]; !ok {
		t.Fatal("expected the announced task to be tracked as pending")
	}
}

func TestProxy_HandleContractInsertsWonTaskAndAcknowledges(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()

	ch, unsub := bus.Subscribe("coordinator")
	defer unsub()

	taskID := uuid.New()
	tsk := &task.Task{
		TaskID:           taskID,
		Status:           task.StatusUnallocated,
		PickupLocation:   "a",
		DeliveryLocation: "b",
		EarliestPickup:   ztp,
		LatestPickup:     ztp.Add(time.Hour),
	}
	p.pending[taskID] = tsk
	p.lastBid = &bidder.Bid{RobotID: "robot-1", TaskID: taskID, RoundID: "round-1", InsertionPoint: 0}

	payload := messaging.TaskContractPayload{TaskID: taskID, RobotID: "robot-1"}
	env, err := messaging.NewEnvelope(messaging.TypeTaskContract, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.handle(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !p.Bidder.Timetable.HasTask(taskID) {
		t.Fatal("expected the won task to be spliced into the local timetable")
	}
	if _, ok := p.pending[taskID]; ok {
		t.Fatal("expected the resolved task to be dropped from pending")
	}

	select {
	case got := <-ch:
		if got.Header.Type != messaging.TypeTaskContractAcknowledge {
			t.Fatalf("expected an acknowledgement, got %v", got.Header.Type)
		}
		var ack messaging.TaskContractAcknowledgementPayload
		if err := got.Decode(&ack); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ack.Accept || ack.NTasks != 1 {
			t.Fatalf("unexpected ack: %+v", ack)
		}
	default:
		t.Fatal("expected an acknowledgement to be whispered to the coordinator")
	}
}

func TestProxy_HandleContractForAnotherRobotDropsPending(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()

	taskID := uuid.New()
	p.pending[taskID] = &task.Task{TaskID: taskID}

	payload := messaging.TaskContractPayload{TaskID: taskID, RobotID: "robot-2"}
	env, err := messaging.NewEnvelope(messaging.TypeTaskContract, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.handle(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := p.pending[taskID]; ok {
		t.Fatal("expected the task to be dropped once resolved to another robot")
	}
	if p.Bidder.Timetable.HasTask(taskID) {
		t.Fatal("did not expect a task won by another robot on this robot's timetable")
	}
}

func TestProxy_HandleRemoveTaskDropsFromTimetable(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()

	taskID := uuid.New()
	tsk := &task.Task{
		TaskID:           taskID,
		PickupLocation:   "a",
		DeliveryLocation: "b",
		EarliestPickup:   ztp,
		LatestPickup:     ztp.Add(time.Hour),
	}
	if err := p.Bidder.Timetable.InsertTaskAt(0, tsk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := messaging.RemoveTaskPayload{TaskID: taskID, Status: task.StatusPreempted}
	env, err := messaging.NewEnvelope(messaging.TypeRemoveTask, ztp, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.handle(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Bidder.Timetable.HasTask(taskID) {
		t.Fatal("expected the removed task to be gone from the local timetable")
	}
}

func TestProxy_HandleDispatchedTaskUpdatesLocalStatus(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()

	taskID := uuid.New()
	tsk := &task.Task{
		TaskID:           taskID,
		Status:           task.StatusAllocated,
		PickupLocation:   "a",
		DeliveryLocation: "b",
		EarliestPickup:   ztp,
		LatestPickup:     ztp.Add(time.Hour),
	}
	if err := p.Bidder.Timetable.InsertTaskAt(0, tsk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatched := *tsk
	dispatched.Status = task.StatusDispatched
	dispatched.Frozen = true
	env, err := messaging.NewEnvelope(messaging.TypeTask, ztp, &dispatched)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.handle(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := p.Bidder.Timetable.GetTask(1)
	if got == nil || got.Status != task.StatusDispatched || !got.Frozen {
		t.Fatalf("expected the local task to reflect the dispatch, got %+v", got)
	}
}

func TestProxy_ReportTaskStatusWhispersToCoordinator(t *testing.T) {
	ztp := time.Unix(0, 0)
	bus := inproc.New(4)
	p := newTestProxy(t, bus, ztp)
	defer p.Close()
	p.Now = func() time.Time { return ztp }

	ch, unsub := bus.Subscribe("coordinator")
	defer unsub()

	taskID := uuid.New()
	if err := p.ReportTaskStatus(taskID, task.StatusOngoing, uuid.New(), messaging.ActionTypeRobotToPickup, messaging.ActionStatusNameOngoing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-ch:
		if got.Header.Type != messaging.TypeTaskStatus {
			t.Fatalf("expected a task status report, got %v", got.Header.Type)
		}
	default:
		t.Fatal("expected a task status report to be whispered to the coordinator")
	}
}
