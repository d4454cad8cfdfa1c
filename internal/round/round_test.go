package round

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/bidder"
)

func TestRound_StartAndTimeToClose(t *testing.T) {
	r := New("round-1", []string{"robot-1", "robot-2"}, false)
	if r.Opened() {
		t.Fatal("expected a fresh round to not be open")
	}

	earliest := time.Unix(1000, 0)
	r.Start(earliest, 10*time.Second)
	if !r.Opened() {
		t.Fatal("expected the round to be open after Start")
	}

	before := earliest.Add(-20 * time.Second)
	if r.TimeToClose(before) {
		t.Error("expected TimeToClose to be false well before the closure deadline")
	}

	atDeadline := earliest.Add(-10 * time.Second)
	if !r.TimeToClose(atDeadline) {
		t.Error("expected TimeToClose to be true at the closure deadline")
	}
}

func TestRound_TimeToClose_allAnswered(t *testing.T) {
	r := New("round-1", []string{"robot-1", "robot-2"}, false)
	earliest := time.Unix(1000, 0)
	r.Start(earliest, 10*time.Second)

	before := earliest.Add(-5 * time.Minute)
	if r.TimeToClose(before) {
		t.Fatal("expected TimeToClose false before any robot has answered")
	}

	r.ProcessNoBid("robot-1", nil)
	if r.TimeToClose(before) {
		t.Fatal("expected TimeToClose false until every robot has answered")
	}

	r.ProcessNoBid("robot-2", nil)
	if !r.TimeToClose(before) {
		t.Fatal("expected TimeToClose true once every robot has answered, even before the deadline")
	}
}

func TestRound_GetResult_picksSmallestMetric(t *testing.T) {
	r := New("round-1", []string{"robot-1", "robot-2"}, false)
	r.Start(time.Unix(1000, 0), 10*time.Second)

	taskID := uuid.New()
	r.ProcessBid("robot-1", &bidder.Bid{RobotID: "robot-1", TaskID: taskID, TemporalMetric: 50})
	r.ProcessBid("robot-2", &bidder.Bid{RobotID: "robot-2", TaskID: taskID, TemporalMetric: 20})

	winner, _, err := r.GetResult(time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.RobotID != "robot-2" {
		t.Errorf("expected robot-2 to win with the smaller metric, got %s", winner.RobotID)
	}
}

func TestRound_GetResult_tieBreaksOnTaskThenRobotID(t *testing.T) {
	r := New("round-1", []string{"robot-1", "robot-2"}, false)
	r.Start(time.Unix(1000, 0), 10*time.Second)

	task1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	task2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	r.ProcessBid("robot-2", &bidder.Bid{RobotID: "robot-2", TaskID: task2, TemporalMetric: 10})
	r.ProcessBid("robot-1", &bidder.Bid{RobotID: "robot-1", TaskID: task1, TemporalMetric: 10})

	winner, _, err := r.GetResult(time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.TaskID != task1 {
		t.Errorf("expected the lower task_id to win an exact tie, got %v", winner.TaskID)
	}
}

func TestRound_GetResult_noAllocation(t *testing.T) {
	r := New("round-1", []string{"robot-1"}, false)
	r.Start(time.Unix(1000, 0), 10*time.Second)
	r.ProcessNoBid("robot-1", []bidder.NoBid{{RobotID: "robot-1", TaskID: uuid.New(), RoundID: "round-1"}})

	_, _, err := r.GetResult(time.Unix(2000, 0))
	noAlloc, ok := err.(*ErrNoAllocation)
	if !ok {
		t.Fatalf("expected *ErrNoAllocation, got %v (%T)", err, err)
	}
	if noAlloc.RoundID != "round-1" {
		t.Errorf("expected round id round-1, got %s", noAlloc.RoundID)
	}
}

func TestRound_GetResult_alternativeTimeSlotFallback(t *testing.T) {
	r := New("round-1", []string{"robot-1"}, true)
	r.Start(time.Unix(1000, 0), 10*time.Second)

	taskID := uuid.New()
	start := time.Unix(5000, 0)
	r.ProcessSoftBid("robot-1", &bidder.SoftBid{Bid: bidder.Bid{
		RobotID: "robot-1", TaskID: taskID, TemporalMetric: 30, AlternativeStartTime: &start,
	}})

	_, _, err := r.GetResult(time.Unix(2000, 0))
	altErr, ok := err.(*ErrAlternativeTimeSlot)
	if !ok {
		t.Fatalf("expected *ErrAlternativeTimeSlot, got %v (%T)", err, err)
	}
	if altErr.Bid.TaskID != taskID {
		t.Errorf("expected soft bid for %v, got %v", taskID, altErr.Bid.TaskID)
	}
}

func TestRound_GetResult_softBidIgnoredWithoutAlternativeTimeslots(t *testing.T) {
	r := New("round-1", []string{"robot-1"}, false)
	r.Start(time.Unix(1000, 0), 10*time.Second)

	start := time.Unix(5000, 0)
	r.ProcessSoftBid("robot-1", &bidder.SoftBid{Bid: bidder.Bid{
		RobotID: "robot-1", TaskID: uuid.New(), TemporalMetric: 30, AlternativeStartTime: &start,
	}})

	_, _, err := r.GetResult(time.Unix(2000, 0))
	if _, ok := err.(*ErrNoAllocation); !ok {
		t.Fatalf("expected *ErrNoAllocation when alternative timeslots are disabled, got %v (%T)", err, err)
	}
}

func TestRound_Finish(t *testing.T) {
	r := New("round-1", []string{"robot-1"}, false)
	r.Start(time.Unix(1000, 0), 10*time.Second)
	r.Finish()
	if !r.Finished() {
		t.Fatal("expected round to be finished")
	}
	if r.Opened() {
		t.Fatal("expected a finished round to not be open")
	}
}
