package robotproxy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/task"
)

// Proxy is one robot's bus-facing agent: on TASK-ANNOUNCEMENT it computes
// and whispers a bid to the coordinator, on TASK-CONTRACT naming it winner
// it splices the task into its own Timetable and whispers back an
// acknowledgement, and it keeps that Timetable in sync with dispatched
// tasks and removals. This is the Go rendering of robot.py's Robot: an
// event-driven zyre node becomes an event-driven consumer of one merged
// envelope channel.
type Proxy struct {
	RobotID         string
	CoordinatorPeer string
	Bus             messaging.Bus
	Bidder          *bidder.Bidder
	Logger          *logging.Logger

	// Now returns the timestamp outbound envelopes are stamped with;
	// defaults to time.Now, overridable so tests can assert on it.
	Now func() time.Time

	// pending tracks every task this robot has seen announced but not yet
	// seen resolved (won by itself or by another robot), keyed by task id,
	// so a later TASK-CONTRACT can be applied without re-fetching the task.
	pending map[uuid.UUID]*task.Task
	// lastBid is this robot's most recent round submission, kept so that a
	// subsequent TASK-CONTRACT naming it winner knows which insertion point
	// to splice the task at.
	lastBid *bidder.Bid

	inbound     <-chan messaging.Envelope
	unsubscribe func()
}

// New returns a Proxy subscribed to the shared broadcast group and its own
// directed inbox (messaging.ProxyPeer(robotID)).
func New(robotID, coordinatorPeer string, bus messaging.Bus, b *bidder.Bidder, logger *logging.Logger) *Proxy {
	group, unsubGroup := bus.Subscribe(messaging.GroupTaskAllocation)
	peer, unsubPeer := bus.Subscribe(messaging.ProxyPeer(robotID))

	merged := make(chan messaging.Envelope, 256)
	go forward(group, merged)
	go forward(peer, merged)

	return &Proxy{
		RobotID:         robotID,
		CoordinatorPeer: coordinatorPeer,
		Bus:             bus,
		Bidder:          b,
		Logger:          logger,
		Now:             time.Now,
		pending:         make(map[uuid.UUID]*task.Task),
		inbound:         merged,
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

// Close releases the proxy's bus subscriptions.
func (p *Proxy) Close() error {
	p.unsubscribe()
	return nil
}

// Run consumes inbound envelopes until ctx is canceled, returning ctx.Err()
// on a clean shutdown. Unlike the coordinator's polled tick loop, the proxy
// is purely reactive: there is no periodic work to do between messages.
func (p *Proxy) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-p.inbound:
			if !ok {
				return nil
			}
			if err := p.handle(env); err != nil {
				return err
			}
		}
	}
}

// handle dispatches one inbound envelope to the handler its MessageType
// names.
func (p *Proxy) handle(env messaging.Envelope) error {
	switch env.Header.Type {
	case messaging.TypeTaskAnnouncement:
		return p.handleAnnouncement(env)
	case messaging.TypeTaskContract:
		return p.handleContract(env)
	case messaging.TypeTask:
		return p.handleDispatchedTask(env)
	case messaging.TypeRemoveTask:
		return p.handleRemoveTask(env)
	case messaging.TypeDGraphUpdate:
		// Informational only: this robot's own Timetable is kept current
		// from TASK-CONTRACT/TASK/REMOVE-TASK-FROM-SCHEDULE traffic, not
		// from the coordinator's replicated view of it.
		return nil
	default:
		p.Logger.Debug().Str("type", string(env.Header.Type)).Log(`ignoring message with no robot-proxy route`)
		return nil
	}
}

// handleAnnouncement computes this robot's single round submission and
// whispers the resulting BID, SOFT-BID, or NO-BID to the coordinator.
func (p *Proxy) handleAnnouncement(env messaging.Envelope) error {
	var payload messaging.TaskAnnouncementPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}
	for _, t := range payload.Tasks {
		p.pending[t.TaskID] = t
	}

	ann := bidder.TaskAnnouncement{RoundID: payload.RoundID, ZTP: payload.ZTP, Tasks: payload.Tasks}
	bid, soft, noBids := p.Bidder.ComputeBids(ann)

	switch {
	case bid != nil:
		p.lastBid = bid
		return p.sendBid(messaging.TypeBid, bid)
	case soft != nil:
		p.lastBid = &soft.Bid
		return p.sendBid(messaging.TypeSoftBid, &soft.Bid)
	default:
		p.lastBid = nil
		return p.sendNoBid(payload.RoundID, noBids)
	}
}

func (p *Proxy) sendBid(msgType messaging.MessageType, bid *bidder.Bid) error {
	payload := messaging.BidPayload{
		RoundID:              bid.RoundID,
		RobotID:              bid.RobotID,
		TaskID:               bid.TaskID,
		InsertionPoint:       bid.InsertionPoint,
		Metrics:              messaging.MetricsPayload{Temporal: bid.TemporalMetric},
		AlternativeStartTime: bid.AlternativeStartTime,
		PreTaskAction:        bid.PreTaskAction,
	}
	env, err := messaging.NewEnvelope(msgType, p.Now(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(p.CoordinatorPeer, env)
}

func (p *Proxy) sendNoBid(roundID string, noBids []bidder.NoBid) error {
	if len(noBids) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(noBids))
	for i, nb := range noBids {
		ids[i] = nb.TaskID
	}
	payload := messaging.NoBidPayload{RoundID: roundID, RobotID: p.RobotID, TaskIDs: ids}
	env, err := messaging.NewEnvelope(messaging.TypeNoBid, p.Now(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(p.CoordinatorPeer, env)
}

// handleContract applies a won task to this robot's live Timetable at the
// insertion point its own last bid proposed, then acknowledges acceptance
// (or rejection, if the bid backing this contract is stale). A contract
// naming another robot winner just drops the task from pending: it has
// been resolved, whether or not it was this robot's to win.
func (p *Proxy) handleContract(env messaging.Envelope) error {
	var payload messaging.TaskContractPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}
	if payload.RobotID != p.RobotID {
		delete(p.pending, payload.TaskID)
		return nil
	}

	t, known := p.pending[payload.TaskID]
	if !known || p.lastBid == nil || p.lastBid.TaskID != payload.TaskID {
		return p.sendAck(payload.TaskID, false, len(p.Bidder.Timetable.Schedule()))
	}

	if err := p.Bidder.Timetable.InsertTaskAt(p.lastBid.InsertionPoint, t); err != nil {
		p.Logger.Warning().Str("task_id", payload.TaskID.String()).Err(err).Log(`rejecting a stale contract`)
		return p.sendAck(payload.TaskID, false, len(p.Bidder.Timetable.Schedule()))
	}

	delete(p.pending, payload.TaskID)
	p.lastBid = nil
	return p.sendAck(payload.TaskID, true, len(p.Bidder.Timetable.Schedule()))
}

func (p *Proxy) sendAck(taskID uuid.UUID, accept bool, nTasks int) error {
	payload := messaging.TaskContractAcknowledgementPayload{
		TaskID:  taskID,
		RobotID: p.RobotID,
		Accept:  accept,
		NTasks:  nTasks,
	}
	env, err := messaging.NewEnvelope(messaging.TypeTaskContractAcknowledge, p.Now(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(p.CoordinatorPeer, env)
}

// handleDispatchedTask applies the coordinator's freeze/dispatch decision to
// the matching task already on this robot's Timetable; it does not change
// the schedule's order, only the task's own lifecycle fields.
func (p *Proxy) handleDispatchedTask(env messaging.Envelope) error {
	var t task.Task
	if err := env.Decode(&t); err != nil {
		return err
	}
	for _, existing := range p.Bidder.Timetable.Schedule() {
		if existing.TaskID != t.TaskID {
			continue
		}
		existing.Status = t.Status
		existing.Frozen = t.Frozen
		existing.StartTime = t.StartTime
		existing.FinishTime = t.FinishTime
		break
	}
	return nil
}

// handleRemoveTask drops a removed task from this robot's Timetable and
// pending set, re-tightening the dispatchable graph over what remains.
func (p *Proxy) handleRemoveTask(env messaging.Envelope) error {
	var payload messaging.RemoveTaskPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}
	delete(p.pending, payload.TaskID)
	if !p.Bidder.Timetable.HasTask(payload.TaskID) {
		return nil
	}
	if err := p.Bidder.Timetable.RemoveTask(payload.TaskID); err != nil {
		return err
	}
	return p.Bidder.Timetable.RecomputeDispatchable()
}

// ReportAssignmentUpdate whispers this robot's current pose to the
// coordinator, the wire counterpart of dispatch.PoseSource.
func (p *Proxy) ReportAssignmentUpdate(location string) error {
	payload := messaging.AssignmentUpdatePayload{RobotID: p.RobotID, Location: location}
	env, err := messaging.NewEnvelope(messaging.TypeAssignmentUpdate, p.Now(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(p.CoordinatorPeer, env)
}

// ReportTaskStatus whispers a TASK-STATUS progress report to the
// coordinator. Real execution (actually moving, actually loading) is an
// external collaborator; this method is the wire boundary a task executor
// would call into as it observes the robot's own progress.
func (p *Proxy) ReportTaskStatus(taskID uuid.UUID, status task.Status, actionID uuid.UUID, actionType, actionStatus string) error {
	payload := messaging.TaskStatusPayload{
		TaskID:     taskID,
		RobotID:    p.RobotID,
		TaskStatus: status,
		Progress: messaging.TaskProgressPayload{
			ActionID:     actionID,
			ActionType:   actionType,
			ActionStatus: messaging.ActionStatusPayload{Status: actionStatus},
		},
	}
	env, err := messaging.NewEnvelope(messaging.TypeTaskStatus, p.Now(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(p.CoordinatorPeer, env)
}
