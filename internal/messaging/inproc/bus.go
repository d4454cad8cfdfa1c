package inproc

import (
	"sync"

	"github.com/joeycumines/fleet-auction/internal/messaging"
)

const defaultBufferSize = 64

type subscription struct {
	id uint64
	ch chan messaging.Envelope
}

// Bus is an in-memory messaging.Bus: every group or peer name is a fan-out
// point, each subscriber holding its own buffered channel.
type Bus struct {
	bufferSize int

	mu     sync.Mutex
	subs   map[string][]*subscription
	nextID uint64
}

// New returns an empty Bus whose subscriber channels are buffered to
// bufferSize (defaulting to 64 if <= 0).
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		bufferSize: bufferSize,
		subs:       make(map[string][]*subscription),
	}
}

// Subscribe registers interest in name (a group or a peer), returning a
// channel of delivered envelopes and an unsubscribe function that closes it.
func (b *Bus) Subscribe(name string) (<-chan messaging.Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan messaging.Envelope, b.bufferSize)
	b.subs[name] = append(b.subs[name], &subscription{id: id, ch: ch})

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[name]
		for i, s := range subs {
			if s.id == id {
				b.subs[name] = append(subs[:i:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish fans env out to every current subscriber of group.
func (b *Bus) Publish(group string, env messaging.Envelope) error {
	return b.deliver(group, env)
}

// Whisper delivers env directly to peer; in this in-memory implementation a
// peer is just another fan-out name, so Whisper and Publish share delivery.
func (b *Bus) Whisper(peer string, env messaging.Envelope) error {
	return b.deliver(peer, env)
}

func (b *Bus) deliver(name string, env messaging.Envelope) error {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[name]...)
	b.mu.Unlock()

	var dropped int
	for _, s := range subs {
		select {
		case s.ch <- env:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return &ErrSubscriberFull{Name: name, Dropped: dropped}
	}
	return nil
}
