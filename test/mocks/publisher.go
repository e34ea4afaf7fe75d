package mocks

import (
	"context"
	"sync"

	"github.com/richxcame/ride-booking/pkg/eventbus"
)

// RecordingPublisher keeps every published event in order.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventbus.Event
	subs   []string
}

func (p *RecordingPublisher) Publish(_ context.Context, subject string, event *eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.subs = append(p.subs, subject)
	return nil
}

// Types returns the type of every recorded event.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// Subjects returns the subject of every recorded event.
func (p *RecordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subs...)
}

// Last returns the most recent event of eventType, or nil.
func (p *RecordingPublisher) Last(eventType string) *eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i]
		}
	}
	return nil
}

// Reset forgets all recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.subs = nil
}
