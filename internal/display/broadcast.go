package display

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultSubscriberBuffer is the queue depth given to each subscriber.
const DefaultSubscriberBuffer = 10

// State is the message pushed to broadcast subscribers.
type State struct {
	Brightness int    `json:"brightness"`
	Digits     [4]int `json:"digits"`
	Colon      bool   `json:"colon"`
}

// Subscription receives serialized State messages on C. C is closed when the
// subscription is closed or pruned for falling behind.
type Subscription struct {
	C <-chan []byte

	ch chan []byte
	b  *Broadcast
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.remove(s.ch)
}

// Broadcast fans every state change out to a dynamic set of subscribers.
// A subscriber whose queue is full is dropped instead of blocking the render
// path; it must subscribe again to receive further updates.
type Broadcast struct {
	log *log.Logger

	mu    sync.Mutex
	subs  map[chan []byte]struct{}
	state State
}

// NewBroadcast returns a Broadcast with no subscribers.
func NewBroadcast(logger *log.Logger) *Broadcast {
	return &Broadcast{
		log:   logger,
		subs:  make(map[chan []byte]struct{}),
		state: State{Brightness: DefaultBrightness},
	}
}

func (b *Broadcast) Name() string { return "broadcast" }

// Subscribe attaches a new subscriber with the given queue depth and queues
// the current state for it straight away.
func (b *Broadcast) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan []byte, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	if msg, err := json.Marshal(b.state); err == nil {
		ch <- msg
	}
	b.log.Debug("subscriber attached", "subscribers", len(b.subs))
	return &Subscription{C: ch, ch: ch, b: b}
}

// Subscribers returns the number of attached subscribers.
func (b *Broadcast) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Current returns the last state sent.
func (b *Broadcast) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broadcast) Brightness() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Brightness
}

func (b *Broadcast) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Brightness = level
	b.publish()
	return nil
}

func (b *Broadcast) Render(segments []byte, colon bool) error {
	if err := checkFrame(segments); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range segments {
		b.state.Digits[i] = int(s)
	}
	b.state.Colon = colon
	b.publish()
	return nil
}

func (b *Broadcast) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Digits = [4]int{}
	b.state.Colon = false
	b.publish()
	return nil
}

// publish must be called with mu held.
func (b *Broadcast) publish() {
	if len(b.subs) == 0 {
		return
	}
	msg, err := json.Marshal(b.state)
	if err != nil {
		b.log.Error("marshal state", "err", err)
		return
	}
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			delete(b.subs, ch)
			close(ch)
			b.log.Warn("subscriber queue full, dropped", "subscribers", len(b.subs))
		}
	}
}

func (b *Broadcast) remove(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
	b.log.Debug("subscriber detached", "subscribers", len(b.subs))
}
