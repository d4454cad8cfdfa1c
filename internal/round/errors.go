package round

import (
	"fmt"

	"github.com/joeycumines/fleet-auction/internal/bidder"
)

// ErrNoAllocation is returned by GetResult when a round closed with no
// usable bid: no hard bids, and either no soft bids or alternative
// timeslots disabled.
type ErrNoAllocation struct {
	RoundID string
}

func (e *ErrNoAllocation) Error() string {
	return fmt.Sprintf("round: no allocation made in round %s", e.RoundID)
}

// ErrAlternativeTimeSlot is returned by GetResult when only soft bids were
// collected and alternative timeslots are enabled: the auctioneer should
// auto-accept Bid, whose AlternativeStartTime differs from the task's
// earliest_pickup.
type ErrAlternativeTimeSlot struct {
	Bid *bidder.SoftBid
}

func (e *ErrAlternativeTimeSlot) Error() string {
	return fmt.Sprintf("round: only an alternative timeslot is available for task %s", e.Bid.TaskID)
}
