package vfs

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription delivers change batches to one consumer. Batches queue without
// bound so publishers never wait on a slow consumer.
type Subscription struct {
	id  string
	hub *hub

	mu    sync.Mutex
	queue [][]FileChangeEvent
	wake  chan struct{}

	events  chan []FileChangeEvent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// ID identifies the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Events yields batches in publication order. The channel closes after Close.
func (s *Subscription) Events() <-chan []FileChangeEvent {
	return s.events
}

// Close detaches the subscription and discards undelivered batches.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
	})
	<-s.stopped
}

func (s *Subscription) push(batch []FileChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, batch)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.stopped)
	defer close(s.events)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		batch := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- batch:
		case <-s.done:
			return
		}
	}
}

// hub fans batches out to subscriptions.
type hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func newHub() *hub {
	return &hub{subs: make(map[string]*Subscription)}
}

func (h *hub) subscribe() *Subscription {
	sub := &Subscription{
		id:      uuid.New().String(),
		hub:     h,
		wake:    make(chan struct{}, 1),
		events:  make(chan []FileChangeEvent),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	return sub
}

func (h *hub) publish(batch []FileChangeEvent) {
	if len(batch) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.push(batch)
	}
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}
