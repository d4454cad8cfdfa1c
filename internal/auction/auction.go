package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/round"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// TaskStore is the external collaborator holding every task's current
// status; the Auctioneer only ever asks it for the UNALLOCATED subset.
type TaskStore interface {
	UnallocatedTasks() ([]*task.Task, error)
}

// Publisher is the external collaborator that puts messages on the wire:
// the task announcement that opens a round, and the task contract that
// names its winner.
type Publisher interface {
	PublishAnnouncement(ann bidder.TaskAnnouncement) error
	PublishWinner(taskID uuid.UUID, robotID string) error
}

// Allocation records a task_id/robot_id pairing the Auctioneer has
// committed, mirroring auctioneer.py's allocations list.
type Allocation struct {
	TaskID   uuid.UUID
	RobotIDs []string
}

// PendingConfirmation is an alternative-timeslot allocation awaiting the
// operator's go-ahead, mirroring auctioneer.py's waiting_for_user_confirmation
// list (currently auto-accepted, see processAlternativeTimeslot).
type PendingConfirmation struct {
	TaskID               uuid.UUID
	RobotID              string
	AlternativeStartTime time.Time
}

// TaskContractAcknowledgment is a robot's accept/reject response to a task
// contract, the trigger for ProcessAcknowledgment.
type TaskContractAcknowledgment struct {
	RobotID string
	TaskID  uuid.UUID
	Accept  bool
	NTasks  int
}

// Auctioneer announces UNALLOCATED tasks to the fleet, drives the
// resulting Round to closure, and commits its winner once the winning
// robot acknowledges the contract.
type Auctioneer struct {
	RobotIDs             []string
	ClosureWindow        time.Duration
	FreezeWindow         time.Duration
	AlternativeTimeslots bool
	ZTP                  time.Time

	Tasks      TaskStore
	Timetables timetable.Store
	Publish    Publisher
	Logger     *logging.Logger

	tasksToAllocate map[uuid.UUID]*task.Task
	round           *round.Round
	winningBid      *bidder.Bid
	waiting         []PendingConfirmation
	allocations     []Allocation
}

// New returns an idle Auctioneer; Run will announce the first round once
// tasksToAllocate is populated by a tick of updateTasksToAllocate.
func New(robotIDs []string, closureWindow, freezeWindow time.Duration, alternativeTimeslots bool, ztp time.Time, tasks TaskStore, timetables timetable.Store, publish Publisher, logger *logging.Logger) *Auctioneer {
	initial := round.New("", nil, alternativeTimeslots)
	// FINISHED, so the first Run tick is free to announce a round the moment
	// tasksToAllocate is non-empty, matching a freshly constructed round
	// that has never been opened.
	initial.Finish()

	return &Auctioneer{
		RobotIDs:             append([]string(nil), robotIDs...),
		ClosureWindow:        closureWindow,
		FreezeWindow:         freezeWindow,
		AlternativeTimeslots: alternativeTimeslots,
		ZTP:                  ztp,
		Tasks:                tasks,
		Timetables:           timetables,
		Publish:              publish,
		Logger:               logger,
		tasksToAllocate:      make(map[uuid.UUID]*task.Task),
		round:                initial,
	}
}

// Allocations returns every committed task_id/robot_id pairing so far.
func (a *Auctioneer) Allocations() []Allocation {
	return append([]Allocation(nil), a.allocations...)
}

// DrainAllocations returns every committed task_id/robot_id pairing so far
// and clears the list, mirroring auctioneer.py's allocations being popped
// one at a time by the CCU's process_allocation loop.
func (a *Auctioneer) DrainAllocations() []Allocation {
	out := a.allocations
	a.allocations = nil
	return out
}

// Run is one coordinator tick: announce a new round if tasks are queued and
// the previous round finished, otherwise close the open round once it's
// time, dispatching its result.
func (a *Auctioneer) Run(now time.Time) error {
	if a.round.Finished() {
		// AnnounceTask refreshes tasksToAllocate from the store and returns
		// without opening a round when nothing is queued.
		if err := a.AnnounceTask(now); err != nil {
			return err
		}
	}

	if a.round.Opened() && a.round.TimeToClose(now) {
		bid, _, err := a.round.GetResult(now)
		switch e := err.(type) {
		case nil:
			a.processRoundResult(bid)
		case *round.ErrNoAllocation:
			a.Logger.Warning().Str("round_id", e.RoundID).Log(`no allocation made in round`)
			if err := a.updateTasksToAllocate(); err != nil {
				return err
			}
			a.round.Finish()
		case *round.ErrAlternativeTimeSlot:
			a.processAlternativeTimeslot(e)
		default:
			return err
		}
	}
	return nil
}

// updateTasksToAllocate refreshes tasksToAllocate from the task store.
func (a *Auctioneer) updateTasksToAllocate() error {
	tasks, err := a.Tasks.UnallocatedTasks()
	if err != nil {
		return err
	}
	a.tasksToAllocate = make(map[uuid.UUID]*task.Task, len(tasks))
	for _, t := range tasks {
		a.tasksToAllocate[t.TaskID] = t
	}
	return nil
}

// earliestTask returns the task with the smallest earliest_pickup.
func earliestTask(tasks []*task.Task) *task.Task {
	var earliest *task.Task
	for _, t := range tasks {
		if earliest == nil || t.EarliestPickup.Before(earliest.EarliestPickup) {
			earliest = t
		}
	}
	return earliest
}

// AnnounceTask refreshes tasksToAllocate, opens a new Round scoped to the
// earliest pending task's closure deadline, and publishes the announcement.
// If the earliest task's pickup window has already closed and alternative
// timeslots are disabled, the task is dropped (mirroring auctioneer.py's
// earliest_task.remove(), here a deletion from tasksToAllocate only; the
// task store itself is left unchanged).
func (a *Auctioneer) AnnounceTask(now time.Time) error {
	if err := a.updateTasksToAllocate(); err != nil {
		return err
	}
	if len(a.tasksToAllocate) == 0 {
		return nil
	}

	tasks := make([]*task.Task, 0, len(a.tasksToAllocate))
	for _, t := range a.tasksToAllocate {
		tasks = append(tasks, t)
	}
	earliest := earliestTask(tasks)
	closureTime := earliest.EarliestPickup.Add(-a.ClosureWindow)

	if !closureTime.After(now) && !a.AlternativeTimeslots {
		a.Logger.Warning().Str("task_id", earliest.TaskID.String()).Log(`task cannot be allocated at its given temporal constraints`)
		delete(a.tasksToAllocate, earliest.TaskID)
		return nil
	}

	roundID := uuid.New().String()
	a.round = round.New(roundID, a.RobotIDs, a.AlternativeTimeslots)

	ann := bidder.TaskAnnouncement{RoundID: roundID, ZTP: a.ZTP, Tasks: tasks}

	a.Logger.Debug().Str("round_id", roundID).Int("n_tasks", len(tasks)).Log(`starting round`)

	if err := a.Publish.PublishAnnouncement(ann); err != nil {
		return err
	}
	a.round.Start(earliest.EarliestPickup, a.ClosureWindow)
	return nil
}

// Reallocate re-queues t for a fresh auction round, the collaborator the
// timetable monitor uses to put a withdrawn task back up for bidding.
func (a *Auctioneer) Reallocate(t *task.Task) error {
	t.AssignedRobots = nil
	a.tasksToAllocate[t.TaskID] = t
	return nil
}

// ProcessBid forwards a robot's hard bid to the open round.
func (a *Auctioneer) ProcessBid(robotID string, bid *bidder.Bid) {
	a.round.ProcessBid(robotID, bid)
}

// ProcessSoftBid forwards a robot's soft bid to the open round.
func (a *Auctioneer) ProcessSoftBid(robotID string, softBid *bidder.SoftBid) {
	a.round.ProcessSoftBid(robotID, softBid)
}

// ProcessNoBid forwards a robot's no-bid response to the open round.
func (a *Auctioneer) ProcessNoBid(robotID string, noBids []bidder.NoBid) {
	a.round.ProcessNoBid(robotID, noBids)
}

// processRoundResult records bid as the winner and publishes its contract.
func (a *Auctioneer) processRoundResult(bid *bidder.Bid) {
	a.winningBid = bid
	a.announceWinner(bid.TaskID, bid.RobotID)
}

// processAlternativeTimeslot records the soft bid's timeslot as pending
// confirmation and, absent an operator prompt, auto-accepts it.
func (a *Auctioneer) processAlternativeTimeslot(err *round.ErrAlternativeTimeSlot) {
	bid := err.Bid
	var alt time.Time
	if bid.AlternativeStartTime != nil {
		alt = *bid.AlternativeStartTime
	}

	a.Logger.Debug().Str("task_id", bid.TaskID.String()).Str("robot_id", bid.RobotID).
		Log(`alternative timeslot offered`)

	a.waiting = append(a.waiting, PendingConfirmation{
		TaskID:               bid.TaskID,
		RobotID:              bid.RobotID,
		AlternativeStartTime: alt,
	})

	// auto-accept: prompting the operator for confirmation is out of scope.
	a.winningBid = &bid.Bid
	a.announceWinner(bid.TaskID, bid.RobotID)
}

// announceWinner publishes the task contract naming taskID's winning robot.
func (a *Auctioneer) announceWinner(taskID uuid.UUID, robotID string) {
	if err := a.Publish.PublishWinner(taskID, robotID); err != nil {
		a.Logger.Err().Err(err).Log(`failed to publish task contract`)
	}
}

// ProcessAcknowledgment concludes (or repeats) the allocation per the
// winning robot's accept/reject response to its task contract.
func (a *Auctioneer) ProcessAcknowledgment(ack TaskContractAcknowledgment, before int) error {
	if ack.Accept && isValidContract(before, ack.NTasks) {
		a.Logger.Debug().Str("task_id", ack.TaskID.String()).Log(`concluding allocation`)
		if err := a.ProcessAllocation(); err != nil {
			return err
		}
	} else {
		a.Logger.Warning().Str("round_id", a.round.RoundID).Log(`round has to be repeated`)
	}
	a.round.Finish()
	return nil
}

// isValidContract reports whether a robot's post-acknowledgment task count
// is consistent with accepting exactly one additional task.
func isValidContract(before, after int) bool {
	return after == before+1
}

// ProcessAllocation commits the current winning bid: inserts its task into
// the winner's timetable at the bid's insertion point, marks the task
// ALLOCATED then PLANNED (the insertion having just proven a temporally
// consistent slot exists), and records the allocation. If the insertion
// turns out to be inconsistent (the winner's timetable having changed since
// the bid was computed), the task is returned to tasksToAllocate for the
// next round instead of being dropped.
func (a *Auctioneer) ProcessAllocation() error {
	bid := a.winningBid
	if bid == nil {
		return fmt.Errorf("auction: no winning bid to process")
	}
	t, ok := a.tasksToAllocate[bid.TaskID]
	if !ok {
		return fmt.Errorf("auction: task %s is not pending allocation", bid.TaskID)
	}

	tt, err := a.Timetables.FetchTimetable(bid.RobotID)
	if err != nil {
		return err
	}

	t.UpdateTravelTime(bid.PreTaskAction.Estimate.Mean, bid.PreTaskAction.Estimate.Variance)

	if err := tt.InsertTaskAt(bid.InsertionPoint, t); err != nil {
		a.Logger.Warning().Str("task_id", t.TaskID.String()).Str("robot_id", bid.RobotID).
			Log(`allocation inconsistent, task requeued for next round`)
		a.round.Finish()
		return nil
	}

	if err := tt.Store(a.Timetables); err != nil {
		return err
	}

	delete(a.tasksToAllocate, bid.TaskID)
	if err := t.SetStatus(task.StatusAllocated); err != nil {
		return err
	}
	t.AssignedRobots = []string{bid.RobotID}

	// tt.InsertTaskAt above already found a temporally consistent slot for
	// t, which is what scheduling a task means; there is no separate
	// STN-solving step left to run before the dispatcher may consider it.
	if err := t.SetStatus(task.StatusPlanned); err != nil {
		return err
	}

	a.allocations = append(a.allocations, Allocation{TaskID: bid.TaskID, RobotIDs: []string{bid.RobotID}})
	a.Logger.Debug().Str("task_id", bid.TaskID.String()).Str("robot_id", bid.RobotID).Log(`allocation committed`)
	return nil
}
