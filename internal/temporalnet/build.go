package temporalnet

import (
	"math"
	"time"

	"github.com/joeycumines/fleet-auction/internal/task"
)

// sigmaClamp bounds a normally-distributed duration to [mean-3sigma, mean+3sigma],
// clamped to be non-negative, the "partial-shrinking" approximation this
// module uses in place of full STNU contingent-edge propagation.
func sigmaClamp(d task.Distribution) (lb, ub float64) {
	sigma := math.Sqrt(d.Variance)
	lb = d.Mean - 3*sigma
	if lb < 0 {
		lb = 0
	}
	ub = d.Mean + 3*sigma
	if ub < lb {
		ub = lb
	}
	return lb, ub
}

// BuildFromTasks reconstructs the STN from scratch given an ordered task
// sequence and a zero-timepoint anchor, wiring for each task: a pickup-window
// edge from Z, a work-time edge pickup->delivery, a travel-time edge
// start->pickup, and (for every task after the first) a non-overlap
// sequencing edge from the previous task's delivery to this task's start.
func BuildFromTasks(ordered []*task.Task, ztp time.Time) *Network {
	net := NewNetwork()

	var prevDelivery Node
	havePrev := false

	for _, t := range ordered {
		start := Node{TaskID: t.TaskID, Kind: task.Start}
		pickup := Node{TaskID: t.TaskID, Kind: task.Pickup}
		delivery := Node{TaskID: t.TaskID, Kind: task.Delivery}

		earliest := t.EarliestPickup.Sub(ztp).Seconds()
		latest := t.LatestPickup.Sub(ztp).Seconds()
		net.SetInterval(Z, pickup, earliest, latest)

		workLB, workUB := sigmaClamp(t.WorkTime)
		net.SetInterval(pickup, delivery, workLB, workUB)

		travelLB, travelUB := sigmaClamp(t.TravelTime)
		net.SetInterval(start, pickup, travelLB, travelUB)

		// a task may start any time from Z onward, absent a predecessor
		net.SetInterval(Z, start, 0, math.Inf(1))

		if havePrev {
			net.SetInterval(prevDelivery, start, 0, math.Inf(1))
		}

		prevDelivery = delivery
		havePrev = true
	}

	return net
}
