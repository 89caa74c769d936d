package storage

import "sync"

type Origin int

const (
	// OriginLocal marks a change made through the same Storage instance.
	OriginLocal Origin = iota
	// OriginRemote marks a change made by another process sharing the profile.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Change reports the latest state of one key. Delivery is at-least-once and
// a slow subscriber may miss intermediate values, so observers re-read or use
// Value as the current state rather than counting changes.
type Change struct {
	Key     string
	Value   string
	Present bool
	Origin  Origin
}

const subscriptionBuffer = 16

type Subscription struct {
	ch     chan Change
	broker *broker
	once   sync.Once
}

func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close unsubscribes and closes the channel. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

type broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[*Subscription]struct{})}
}

func (b *broker) subscribe() *Subscription {
	s := &Subscription{ch: make(chan Change, subscriptionBuffer), broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// publish never blocks: when a subscriber's buffer is full the oldest pending
// change is dropped to make room.
func (b *broker) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		select {
		case s.ch <- c:
			continue
		default:
		}
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- c:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}
