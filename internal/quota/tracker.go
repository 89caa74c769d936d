package quota

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"thumbforge-client/internal/model"
	"thumbforge-client/internal/storage"
	"thumbforge-client/pkg/logger"
)

// Ceiling is the number of successful generations allowed per session.
const Ceiling = 10

var ErrQuotaExceeded = errors.New("generation limit reached")

// LimitMessage is shown when no generations remain.
var LimitMessage = fmt.Sprintf("Limit (%d)", Ceiling)

// Tracker mirrors the usage counter of the profile. It is the only writer of
// storage.KeyUsage.
//
// Increment is an unguarded read-modify-write. Two processes incrementing at
// the same moment can both read n and both write n+1, losing one count. The
// quota is a client-side guardrail, so this is accepted rather than guarded
// with a cross-process lock.
type Tracker struct {
	store storage.Storage

	sub  *storage.Subscription
	done chan struct{}

	mu        sync.Mutex
	count     int
	loaded    bool
	listeners []func(model.Usage)
}

func NewTracker(store storage.Storage) *Tracker {
	t := &Tracker{
		store: store,
		sub:   store.Subscribe(),
		done:  make(chan struct{}),
	}
	go t.watch()
	return t
}

func (t *Tracker) watch() {
	defer close(t.done)
	for c := range t.sub.C() {
		if c.Key != storage.KeyUsage {
			continue
		}
		// re-read rather than trust c.Value: a queued change can be older
		// than what Increment already applied.
		if err := t.Refresh(); err != nil {
			logger.Warnf("re-reading usage counter: %v", err)
		}
	}
}

// parseCount treats absent, malformed and negative values as zero.
func parseCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (t *Tracker) update(count int) {
	t.mu.Lock()
	changed := !t.loaded || t.count != count
	t.count = count
	t.loaded = true
	listeners := append([]func(model.Usage){}, t.listeners...)
	t.mu.Unlock()

	if !changed {
		return
	}
	usage := usageFor(count)
	for _, fn := range listeners {
		fn(usage)
	}
}

// OnChange registers fn to run whenever the counter changes, locally or in
// another process sharing the profile.
func (t *Tracker) OnChange(fn func(model.Usage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) read() (int, error) {
	raw, ok, err := t.store.Get(storage.KeyUsage)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return parseCount(raw), nil
}

// Refresh re-reads the counter from the profile.
func (t *Tracker) Refresh() error {
	n, err := t.read()
	if err != nil {
		return err
	}
	t.update(n)
	return nil
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	loaded, count := t.loaded, t.count
	t.mu.Unlock()

	if !loaded {
		if err := t.Refresh(); err != nil {
			logger.Warnf("reading usage counter: %v", err)
			return 0
		}
		t.mu.Lock()
		count = t.count
		t.mu.Unlock()
	}
	return count
}

func (t *Tracker) Remaining() int {
	return usageFor(t.Count()).Remaining
}

func (t *Tracker) CanGenerate() bool {
	return t.Remaining() > 0
}

func (t *Tracker) Usage() model.Usage {
	return usageFor(t.Count())
}

// Increment adds one to the stored counter and returns the new value. It is
// never blocked by the ceiling; callers check CanGenerate before starting a
// generation.
func (t *Tracker) Increment() (int, error) {
	current, err := t.read()
	if err != nil {
		return 0, fmt.Errorf("reading usage counter: %w", err)
	}

	next := current + 1
	if err := t.store.Set(storage.KeyUsage, strconv.Itoa(next)); err != nil {
		return 0, fmt.Errorf("writing usage counter: %w", err)
	}

	t.update(next)
	return next, nil
}

func (t *Tracker) Close() {
	t.sub.Close()
	<-t.done
}

func usageFor(count int) model.Usage {
	remaining := Ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	return model.Usage{Count: count, Ceiling: Ceiling, Remaining: remaining}
}
