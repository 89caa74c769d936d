package handler

import "sync"

const eventBuffer = 32

type event struct {
	name    string
	payload interface{}
}

// hub fans state changes out to connected event streams. Slow streams lose
// events; every payload is a full snapshot so the next one catches them up.
type hub struct {
	mu      sync.Mutex
	streams map[chan event]struct{}
}

func newHub() *hub {
	return &hub{streams: make(map[chan event]struct{})}
}

func (h *hub) join() chan event {
	ch := make(chan event, eventBuffer)
	h.mu.Lock()
	h.streams[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) leave(ch chan event) {
	h.mu.Lock()
	delete(h.streams, ch)
	h.mu.Unlock()
}

func (h *hub) broadcast(name string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.streams {
		select {
		case ch <- event{name: name, payload: payload}:
		default:
		}
	}
}
