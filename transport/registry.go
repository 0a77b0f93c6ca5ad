package transport

import "sync"

// Token identifies one registered handler so it can be removed precisely,
// without relying on function identity comparison.
type Token uint64

type registration struct {
	token   Token
	handler Handler
}

// Registry maps topic strings to ordered handler registrations. Multiple
// independent handlers may coexist per topic; each is invoked at most once
// per inbound message on its topic. Safe for concurrent use: client
// implementations call into it from delivery goroutines while the driver
// adds and removes subscriptions.
type Registry struct {
	mu     sync.Mutex
	next   Token
	topics map[string][]registration
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string][]registration)}
}

// Add registers handler under topic in insertion order. The second return
// reports whether this is the first handler for the topic, i.e. whether a
// broker-level subscribe is needed.
func (r *Registry) Add(topic string, handler Handler) (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	token := r.next
	first := len(r.topics[topic]) == 0
	r.topics[topic] = append(r.topics[topic], registration{token: token, handler: handler})
	return token, first
}

// Remove drops the handler registered under token. The second return
// reports whether the topic is now empty, i.e. whether a broker-level
// unsubscribe is due.
func (r *Registry) Remove(topic string, token Token) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.topics[topic]
	for i, reg := range regs {
		if reg.token == token {
			regs = append(regs[:i], regs[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false, false
	}
	if len(regs) == 0 {
		delete(r.topics, topic)
		return true, true
	}
	r.topics[topic] = regs
	return true, false
}

// RemoveTopic drops every handler for topic. Returns whether any handler
// was registered.
func (r *Registry) RemoveTopic(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.topics[topic]
	delete(r.topics, topic)
	return ok
}

// Handlers returns a snapshot of the handlers for topic in registration
// order. An unknown topic yields nil, which dispatch treats as a silent
// drop.
func (r *Registry) Handlers(topic string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.topics[topic]
	if len(regs) == 0 {
		return nil
	}
	out := make([]Handler, len(regs))
	for i, reg := range regs {
		out[i] = reg.handler
	}
	return out
}

// Count returns the number of handlers registered for topic.
func (r *Registry) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}

// Topics returns every topic with at least one handler.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		names = append(names, topic)
	}
	return names
}

// Clear removes all registrations. Used on Disconnect.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = make(map[string][]registration)
}
