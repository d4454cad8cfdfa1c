package round

import (
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/bidder"
)

// State is a Round's position in its IDLE -> OPEN -> CLOSING -> FINISHED
// lifecycle.
type State int

const (
	Idle State = iota
	Open
	Closing
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Round accumulates bids for a single-item sealed-bid auction against the
// given robot roster, closing either at a wall-clock deadline or once every
// robot has responded.
type Round struct {
	RoundID              string
	RobotIDs             []string
	AlternativeTimeslots bool

	state       State
	closureTime time.Time

	bids     map[uuid.UUID]*bidder.Bid
	softBids map[uuid.UUID]*bidder.SoftBid
	noBids   map[uuid.UUID]*bidder.NoBid
	answered map[string]bool
}

// New returns an IDLE round for roundID against robotIDs.
func New(roundID string, robotIDs []string, alternativeTimeslots bool) *Round {
	return &Round{
		RoundID:              roundID,
		RobotIDs:             append([]string(nil), robotIDs...),
		AlternativeTimeslots: alternativeTimeslots,
		bids:                 make(map[uuid.UUID]*bidder.Bid),
		softBids:             make(map[uuid.UUID]*bidder.SoftBid),
		noBids:               make(map[uuid.UUID]*bidder.NoBid),
		answered:             make(map[string]bool, len(robotIDs)),
	}
}

// Opened reports whether the round has been started and not yet finished.
func (r *Round) Opened() bool {
	return r.state == Open || r.state == Closing
}

// Finished reports whether the round has moved to FINISHED.
func (r *Round) Finished() bool {
	return r.state == Finished
}

// Start moves the round to OPEN and records the closure deadline: the
// earliest announced task's pickup-earliest time, minus closureWindow.
func (r *Round) Start(earliestPickup time.Time, closureWindow time.Duration) {
	r.state = Open
	r.closureTime = earliestPickup.Add(-closureWindow)
}

// ProcessBid records robotID's hard bid, overwriting any earlier bid for the
// same task within this round.
func (r *Round) ProcessBid(robotID string, bid *bidder.Bid) {
	r.bids[bid.TaskID] = bid
	r.answered[robotID] = true
}

// ProcessSoftBid records robotID's soft bid, overwriting any earlier soft
// bid for the same task within this round.
func (r *Round) ProcessSoftBid(robotID string, softBid *bidder.SoftBid) {
	r.softBids[softBid.TaskID] = softBid
	r.answered[robotID] = true
}

// ProcessNoBid records robotID's failure to bid on one or more tasks.
func (r *Round) ProcessNoBid(robotID string, noBids []bidder.NoBid) {
	for i := range noBids {
		nb := noBids[i]
		r.noBids[nb.TaskID] = &nb
	}
	r.answered[robotID] = true
}

// allAnswered reports whether every registered robot has submitted a
// response (a bid, soft bid, or no-bid) this round.
func (r *Round) allAnswered() bool {
	for _, id := range r.RobotIDs {
		if !r.answered[id] {
			return false
		}
	}
	return true
}

// TimeToClose reports whether the round should close: either the closure
// deadline has passed, or every robot has already answered.
func (r *Round) TimeToClose(now time.Time) bool {
	if !now.Before(r.closureTime) {
		return true
	}
	return r.allAnswered()
}

// bidKeyLess orders two hard bids by ascending temporal metric, then by
// task_id, then by robot_id, the tie-break Round.GetResult uses.
func bidKeyLess(a, b *bidder.Bid) bool {
	if a.TemporalMetric != b.TemporalMetric {
		return a.TemporalMetric < b.TemporalMetric
	}
	if a.TaskID != b.TaskID {
		return a.TaskID.String() < b.TaskID.String()
	}
	return a.RobotID < b.RobotID
}

// GetResult picks the minimum-metric bid across every robot's submission
// this round, and returns the time elapsed since the round's closure
// deadline (now minus the closure time).
//
// Returns *ErrNoAllocation if no hard bid was collected and either no soft
// bid was collected or alternative timeslots are disabled; returns
// *ErrAlternativeTimeSlot (wrapping the minimum-metric soft bid) if only
// soft bids were collected and alternative timeslots are enabled.
func (r *Round) GetResult(now time.Time) (*bidder.Bid, time.Duration, error) {
	elapsed := now.Sub(r.closureTime)

	var winner *bidder.Bid
	for _, bid := range r.bids {
		if winner == nil || bidKeyLess(bid, winner) {
			winner = bid
		}
	}
	if winner != nil {
		return winner, elapsed, nil
	}

	if r.AlternativeTimeslots {
		var softWinner *bidder.SoftBid
		for _, soft := range r.softBids {
			if softWinner == nil || bidKeyLess(&soft.Bid, &softWinner.Bid) {
				softWinner = soft
			}
		}
		if softWinner != nil {
			return nil, elapsed, &ErrAlternativeTimeSlot{Bid: softWinner}
		}
	}

	return nil, elapsed, &ErrNoAllocation{RoundID: r.RoundID}
}

// Finish moves the round to FINISHED.
func (r *Round) Finish() {
	r.state = Finished
}
