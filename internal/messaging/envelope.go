package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType names one of the wire message types exchanged between the
// coordinator and the fleet.
type MessageType string

const (
	TypeTaskAnnouncement        MessageType = "TASK-ANNOUNCEMENT"
	TypeBid                     MessageType = "BID"
	TypeNoBid                   MessageType = "NO-BID"
	TypeSoftBid                 MessageType = "SOFT-BID"
	TypeTaskContract            MessageType = "TASK-CONTRACT"
	TypeTaskContractAcknowledge MessageType = "TASK-CONTRACT-ACKNOWLEDGEMENT"
	TypeTask                    MessageType = "TASK"
	TypeDGraphUpdate            MessageType = "DGRAPH-UPDATE"
	TypeTaskStatus              MessageType = "TASK-STATUS"
	TypeAssignmentUpdate        MessageType = "ASSIGNMENT-UPDATE"
	TypeRemoveTask              MessageType = "REMOVE-TASK-FROM-SCHEDULE"
	TypeStartTest               MessageType = "START-TEST"
	TypeFinishTest              MessageType = "FINISH-TEST"
)

// GroupTaskAllocation is the one named pub/sub group this system uses: every
// robot bidder and the coordinator's auctioneer subscribe to it.
const GroupTaskAllocation = "TASK-ALLOCATION"

// ProxyPeer is the directed-message peer name for a robot's proxy process,
// the recipient of task contracts, D-graph updates, and schedule removals.
func ProxyPeer(robotID string) string {
	return robotID + "_proxy"
}

// Header is an Envelope's routing metadata.
type Header struct {
	Type      MessageType `json:"type"`
	MsgID     uuid.UUID   `json:"msg_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// Envelope is the wire message every Bus operation carries: a typed header
// plus an opaque payload, decoded by the receiver once it knows Header.Type.
type Envelope struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and wraps it in an Envelope of the given
// type, stamped with a fresh message id and the given timestamp.
func NewEnvelope(t MessageType, timestamp time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Header: Header{
			Type:      t,
			MsgID:     uuid.New(),
			Timestamp: timestamp,
		},
		Payload: raw,
	}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Bus is the transport contract: a named-group publish/subscribe channel
// plus directed messages to a specific peer. Its own implementation
// (routing, delivery guarantees, persistence) is out of scope; production
// deployments plug in a real pub/sub transport.
type Bus interface {
	// Publish fans env out to every current subscriber of group.
	Publish(group string, env Envelope) error
	// Whisper delivers env directly to peer, bypassing group fan-out.
	Whisper(peer string, env Envelope) error
	// Subscribe registers interest in group, returning a channel of
	// delivered envelopes and an unsubscribe function. The channel is
	// closed once unsubscribe is called.
	Subscribe(group string) (<-chan Envelope, func())
}
