package ccu

import (
	"context"
	"io"
	"time"

	"github.com/joeycumines/fleet-auction/internal/auction"
	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/dispatch"
	"github.com/joeycumines/fleet-auction/internal/drain"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/monitor"
)

// drainConfig bounds the per-tick inbound poll: wait up to 20ms for the
// first envelope, then take whatever else is already buffered without
// blocking further, so an empty bus never stalls the tick loop.
var drainConfig = &drain.Config{MaxSize: -1, MinSize: -1, PartialTimeout: 20 * time.Millisecond}

// Coordinator runs the cooperative tick loop spec.md §5 describes: drain
// inbound messages, run the auctioneer, dispatcher, and timetable monitor in
// that fixed order, then drain the auctioneer's freshly committed
// allocations, then sleep.
type Coordinator struct {
	TickInterval time.Duration

	Bus        messaging.Bus
	Auctioneer *auction.Auctioneer
	Dispatcher *dispatch.Dispatcher
	Monitor    *monitor.Monitor
	Publisher  *BusPublisher
	Logger     *logging.Logger

	inbound     <-chan messaging.Envelope
	unsubscribe func()
}

// New returns a Coordinator subscribed to the shared broadcast group and,
// separately, to its own peer name, where every robot proxy whispers its
// directed replies (task contract acks, status reports); both subscriptions
// are merged into one inbound channel.
func New(tickInterval time.Duration, bus messaging.Bus, peerName string, auctioneer *auction.Auctioneer, dispatcher *dispatch.Dispatcher, mon *monitor.Monitor, publisher *BusPublisher, logger *logging.Logger) *Coordinator {
	group, unsubGroup := bus.Subscribe(messaging.GroupTaskAllocation)
	peer, unsubPeer := bus.Subscribe(peerName)

	merged := make(chan messaging.Envelope, 256)
	go forward(group, merged)
	go forward(peer, merged)

	return &Coordinator{
		TickInterval: tickInterval,
		Bus:          bus,
		Auctioneer:   auctioneer,
		Dispatcher:   dispatcher,
		Monitor:      mon,
		Publisher:    publisher,
		Logger:       logger,
		inbound:      merged,
		unsubscribe: func() {
			unsubGroup()
			unsubPeer()
		},
	}
}

// forward relays every envelope from src onto dst until src closes.
func forward(src <-chan messaging.Envelope, dst chan<- messaging.Envelope) {
	for env := range src {
		dst <- env
	}
}

// Close releases the coordinator's bus subscriptions.
func (c *Coordinator) Close() error {
	c.unsubscribe()
	return nil
}

// Run executes the tick loop until ctx is canceled, returning ctx.Err() on a
// clean shutdown.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if err := c.tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.TickInterval):
		}
	}
}

// tick is one iteration of the loop: drain inbound envelopes, run every
// component in spec.md §5's fixed order, then drain allocations.
func (c *Coordinator) tick(ctx context.Context) error {
	now := time.Now()
	c.Publisher.SetNow(now)

	if err := drain.Drain(ctx, drainConfig, c.inbound, c.route); err != nil && err != io.EOF {
		return err
	}

	if err := c.Auctioneer.Run(now); err != nil {
		return err
	}
	if err := c.Dispatcher.Run(now); err != nil {
		return err
	}
	if err := c.Monitor.Run(now); err != nil {
		return err
	}
	return c.processAllocations()
}

// route dispatches one inbound envelope to the collaborator its MessageType
// names.
func (c *Coordinator) route(env messaging.Envelope) error {
	switch env.Header.Type {
	case messaging.TypeBid:
		var payload messaging.BidPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		c.Auctioneer.ProcessBid(payload.RobotID, bidFromPayload(payload))

	case messaging.TypeSoftBid:
		var payload messaging.BidPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		c.Auctioneer.ProcessSoftBid(payload.RobotID, &bidder.SoftBid{Bid: *bidFromPayload(payload)})

	case messaging.TypeNoBid:
		var payload messaging.NoBidPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		noBids := make([]bidder.NoBid, len(payload.TaskIDs))
		for i, id := range payload.TaskIDs {
			noBids[i] = bidder.NoBid{RobotID: payload.RobotID, TaskID: id, RoundID: payload.RoundID}
		}
		c.Auctioneer.ProcessNoBid(payload.RobotID, noBids)

	case messaging.TypeTaskContractAcknowledge:
		var payload messaging.TaskContractAcknowledgementPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		return c.handleAcknowledgment(payload)

	case messaging.TypeTaskStatus:
		var payload messaging.TaskStatusPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		return c.Monitor.HandleTaskStatus(progressFromPayload(payload, env.Header.Timestamp))

	case messaging.TypeAssignmentUpdate:
		var payload messaging.AssignmentUpdatePayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		if reg, ok := c.Dispatcher.Poses.(*PoseRegistry); ok {
			reg.SetPose(payload.RobotID, payload.Location)
		}

	default:
		c.Logger.Debug().Str("type", string(env.Header.Type)).Log(`ignoring message with no coordinator route`)
	}
	return nil
}

// handleAcknowledgment measures the winning robot's pre-acceptance task
// count (ProcessAllocation, called from within ProcessAcknowledgment, is
// what performs the insertion) and forwards the acknowledgment.
func (c *Coordinator) handleAcknowledgment(payload messaging.TaskContractAcknowledgementPayload) error {
	before := 0
	tt, err := c.Dispatcher.Timetables.FetchTimetable(payload.RobotID)
	if err != nil {
		return err
	}
	if tt != nil {
		before = len(tt.Schedule())
	}

	ack := auction.TaskContractAcknowledgment{
		RobotID: payload.RobotID,
		TaskID:  payload.TaskID,
		Accept:  payload.Accept,
		NTasks:  payload.NTasks,
	}
	return c.Auctioneer.ProcessAcknowledgment(ack, before)
}

// bidFromPayload reconstructs a bidder.Bid from its wire form.
func bidFromPayload(payload messaging.BidPayload) *bidder.Bid {
	return &bidder.Bid{
		RobotID:              payload.RobotID,
		TaskID:               payload.TaskID,
		RoundID:              payload.RoundID,
		InsertionPoint:       payload.InsertionPoint,
		TemporalMetric:       payload.Metrics.Temporal,
		AlternativeStartTime: payload.AlternativeStartTime,
		PreTaskAction:        payload.PreTaskAction,
	}
}

// progressFromPayload reconstructs a monitor.Progress from its wire form.
func progressFromPayload(payload messaging.TaskStatusPayload, timestamp time.Time) monitor.Progress {
	p := monitor.Progress{
		TaskID:     payload.TaskID,
		RobotID:    payload.RobotID,
		TaskStatus: payload.TaskStatus,
		Timestamp:  timestamp,
	}
	if payload.Progress.ActionType == messaging.ActionTypePickupToDelivery {
		p.Action = monitor.ActionPickupToDelivery
	} else {
		p.Action = monitor.ActionFirst
	}
	if payload.Progress.ActionStatus.Status == messaging.ActionStatusNameCompleted {
		p.ActionStatus = monitor.ActionCompleted
	} else {
		p.ActionStatus = monitor.ActionOngoing
	}
	return p
}

// processAllocations drains every allocation the auctioneer committed this
// tick, mirroring ccu.py's process_allocation loop minus the task-plan and
// performance-metric bookkeeping this module doesn't model: the dispatcher's
// own change-detecting D-graph send (Dispatcher.Run, already called this
// tick) already covers sending the winner its updated schedule, so this
// step is log-only bookkeeping.
func (c *Coordinator) processAllocations() error {
	for _, alloc := range c.Auctioneer.DrainAllocations() {
		c.Logger.Debug().Str("task_id", alloc.TaskID.String()).Log(`allocation committed`)
	}
	return nil
}
