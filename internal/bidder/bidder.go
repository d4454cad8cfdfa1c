package bidder

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/temporalnet"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// relaxedHorizon stands in for "unbounded latest pickup" when a bidder falls
// back to soft bidding: time.Time has no infinity, so the relaxed window
// extends this far past ZTP instead.
const relaxedHorizon = 365 * 24 * time.Hour

// Bid is a robot's winning insertion proposal for one task in a round.
type Bid struct {
	RobotID              string
	TaskID               uuid.UUID
	RoundID              string
	InsertionPoint       int
	TemporalMetric       float64
	AlternativeStartTime *time.Time
	PreTaskAction        planner.PreTaskAction
}

// SoftBid is a Bid whose AlternativeStartTime differs from the task's
// earliest_pickup, submitted only when every hard (window-respecting)
// insertion was inconsistent and alternative timeslots are enabled.
type SoftBid struct {
	Bid
}

// NoBid is sent for a single task when every insertion position, across the
// whole schedule, produced an inconsistent network.
type NoBid struct {
	RobotID string
	TaskID  uuid.UUID
	RoundID string
}

// TaskAnnouncement is the coordinator's per-round broadcast: every task
// still awaiting allocation, plus the round id and the fleet's shared ZTP.
type TaskAnnouncement struct {
	RoundID string
	ZTP     time.Time
	Tasks   []*task.Task
}

// Bidder computes one robot's auction response: try every announced task at
// every insertion position, and submit the single best outcome for the
// round, per spec.md's TeSSI-derived bidding algorithm.
type Bidder struct {
	RobotID              string
	Pose                 string
	Rule                 Rule
	Alpha                float64
	AlternativeTimeslots bool
	Planner              planner.Planner
	Timetable            *timetable.Timetable
}

type candidateOutcome struct {
	insertionPoint   int
	metric           float64
	preTaskAction    planner.PreTaskAction
	alternativeStart *time.Time
}

// tryInsertTask enumerates every insertion position for t, builds a
// candidate timetable per position (cloned, never mutating b.Timetable),
// and keeps the one minimizing b.Rule. When relaxed is true, t's pickup
// window is widened to [ZTP, ZTP+relaxedHorizon) before insertion, the soft
// bidding fallback.
func (b *Bidder) tryInsertTask(t *task.Task, relaxed bool) (candidateOutcome, bool) {
	before := b.Timetable
	sched := before.Schedule()

	best := candidateOutcome{metric: math.Inf(1)}
	found := false

	for i := 0; i <= len(sched); i++ {
		from := b.Pose
		if i > 0 {
			from = sched[i-1].DeliveryLocation
		}

		preAction, err := planner.GetPreTaskAction(b.Planner, from, t.PickupLocation)
		if err != nil {
			continue
		}

		candidateTask := *t
		candidateTask.UpdateTravelTime(preAction.Estimate.Mean, preAction.Estimate.Variance)
		if relaxed {
			candidateTask.EarliestPickup = before.ZTP
			candidateTask.LatestPickup = before.ZTP.Add(relaxedHorizon)
		}

		candidate := before.Clone()
		if err := candidate.InsertTaskAt(i, &candidateTask); err != nil {
			continue
		}

		metric := b.Rule.Score(before, candidate, t.TaskID, b.Alpha)
		if metric >= best.metric {
			continue
		}

		outcome := candidateOutcome{insertionPoint: i, metric: metric, preTaskAction: preAction}
		if relaxed {
			pickup := temporalnet.Node{TaskID: t.TaskID, Kind: task.Pickup}
			if earliest, ok := candidate.Dispatchable.GetTime(pickup, true); ok {
				alt := before.ZTP.Add(time.Duration(earliest * float64(time.Second)))
				outcome.alternativeStart = &alt
			}
		}
		best = outcome
		found = true
	}

	return best, found
}

// ComputeBids evaluates every task in ann and returns the robot's single
// round outcome: a hard Bid if any task admits a consistent insertion within
// its pickup window; else, if alternative timeslots are enabled, the best
// SoftBid across relaxed-window insertions; else a NoBid per task that
// admitted no insertion at all.
func (b *Bidder) ComputeBids(ann TaskAnnouncement) (*Bid, *SoftBid, []NoBid) {
	var (
		bestBid  *Bid
		bestTask *task.Task
		failed   []*task.Task
	)

	for _, t := range ann.Tasks {
		outcome, ok := b.tryInsertTask(t, false)
		if !ok {
			failed = append(failed, t)
			continue
		}
		if bestBid == nil || outcome.metric < bestBid.TemporalMetric ||
			(outcome.metric == bestBid.TemporalMetric && t.TaskID.String() < bestTask.TaskID.String()) {
			bestTask = t
			bestBid = &Bid{
				RobotID:        b.RobotID,
				TaskID:         t.TaskID,
				RoundID:        ann.RoundID,
				InsertionPoint: outcome.insertionPoint,
				TemporalMetric: outcome.metric,
				PreTaskAction:  outcome.preTaskAction,
			}
		}
	}

	if bestBid != nil {
		return bestBid, nil, nil
	}

	if b.AlternativeTimeslots {
		var (
			bestSoft *SoftBid
			bestTask *task.Task
		)
		for _, t := range failed {
			outcome, ok := b.tryInsertTask(t, true)
			if !ok {
				continue
			}
			if bestSoft == nil || outcome.metric < bestSoft.TemporalMetric ||
				(outcome.metric == bestSoft.TemporalMetric && t.TaskID.String() < bestTask.TaskID.String()) {
				bestTask = t
				altStart := ann.ZTP
				if outcome.alternativeStart != nil {
					altStart = *outcome.alternativeStart
				}
				bestSoft = &SoftBid{Bid: Bid{
					RobotID:              b.RobotID,
					TaskID:               t.TaskID,
					RoundID:              ann.RoundID,
					InsertionPoint:       outcome.insertionPoint,
					TemporalMetric:       outcome.metric,
					AlternativeStartTime: &altStart,
					PreTaskAction:        outcome.preTaskAction,
				}}
			}
		}
		if bestSoft != nil {
			return nil, bestSoft, nil
		}
	}

	noBids := make([]NoBid, len(failed))
	for i, t := range failed {
		noBids[i] = NoBid{RobotID: b.RobotID, TaskID: t.TaskID, RoundID: ann.RoundID}
	}
	return nil, nil, noBids
}
