package ccu

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/task"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

// BusPublisher adapts a messaging.Bus into every publisher-shaped
// collaborator the auctioneer, dispatcher, and timetable monitor need
// (auction.Publisher, dispatch.TaskPublisher, dispatch.DGraphPublisher,
// monitor.RemovalPublisher), stamping every envelope with the coordinator's
// current tick time.
type BusPublisher struct {
	Bus messaging.Bus

	mu  sync.Mutex
	now time.Time
}

// NewBusPublisher returns a BusPublisher over bus.
func NewBusPublisher(bus messaging.Bus) *BusPublisher {
	return &BusPublisher{Bus: bus}
}

// SetNow records the timestamp subsequent publishes stamp their envelopes
// with, called once per coordinator tick.
func (p *BusPublisher) SetNow(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *BusPublisher) clock() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

// PublishAnnouncement broadcasts a TASK-ANNOUNCEMENT to the fleet.
func (p *BusPublisher) PublishAnnouncement(ann bidder.TaskAnnouncement) error {
	payload := messaging.TaskAnnouncementPayload{RoundID: ann.RoundID, ZTP: ann.ZTP, Tasks: ann.Tasks}
	env, err := messaging.NewEnvelope(messaging.TypeTaskAnnouncement, p.clock(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Publish(messaging.GroupTaskAllocation, env)
}

// PublishWinner whispers a TASK-CONTRACT naming taskID's winner to robotID.
func (p *BusPublisher) PublishWinner(taskID uuid.UUID, robotID string) error {
	payload := messaging.TaskContractPayload{TaskID: taskID, RobotID: robotID}
	env, err := messaging.NewEnvelope(messaging.TypeTaskContract, p.clock(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(messaging.ProxyPeer(robotID), env)
}

// PublishTask whispers a dispatched task's TASK contract to robotID.
func (p *BusPublisher) PublishTask(t *task.Task, robotID string) error {
	env, err := messaging.NewEnvelope(messaging.TypeTask, p.clock(), t)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(messaging.ProxyPeer(robotID), env)
}

// PublishDGraphUpdate whispers update's robot its current prefix D-graph.
func (p *BusPublisher) PublishDGraphUpdate(update *timetable.DGraphUpdate) error {
	payload := messaging.NewDGraphUpdatePayload(update)
	env, err := messaging.NewEnvelope(messaging.TypeDGraphUpdate, p.clock(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(messaging.ProxyPeer(update.RobotID), env)
}

// PublishRemoveTask whispers a REMOVE-TASK-FROM-SCHEDULE instruction to
// robotID.
func (p *BusPublisher) PublishRemoveTask(taskID uuid.UUID, status task.Status, robotID string) error {
	payload := messaging.RemoveTaskPayload{TaskID: taskID, Status: status}
	env, err := messaging.NewEnvelope(messaging.TypeRemoveTask, p.clock(), payload)
	if err != nil {
		return err
	}
	return p.Bus.Whisper(messaging.ProxyPeer(robotID), env)
}
