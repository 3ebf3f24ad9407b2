package api

import "sync"

// SolveEvent is one progress or lifecycle event of a running solve,
// streamed to WebSocket clients subscribed to the scenario.
type SolveEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans solve events out to stream subscribers. Events are keyed
// by scenario ID.
type EventBroker interface {
	Subscribe(scenarioID string) chan SolveEvent
	Unsubscribe(scenarioID string, ch chan SolveEvent)
	Publish(scenarioID string, evt SolveEvent)
}

// Broker is the in-process EventBroker used when no REDIS_URL is set.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SolveEvent]struct{} // scenarioId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SolveEvent]struct{}{}}
}

func (b *Broker) Subscribe(scenarioID string) chan SolveEvent {
	ch := make(chan SolveEvent, 8)
	b.mu.Lock()
	if b.subs[scenarioID] == nil {
		b.subs[scenarioID] = map[chan SolveEvent]struct{}{}
	}
	b.subs[scenarioID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(scenarioID string, ch chan SolveEvent) {
	b.mu.Lock()
	if m := b.subs[scenarioID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, scenarioID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(scenarioID string, evt SolveEvent) {
	b.mu.Lock()
	for ch := range b.subs[scenarioID] {
		select {
		case ch <- evt:
		default: // slow subscriber, drop
		}
	}
	b.mu.Unlock()
}
