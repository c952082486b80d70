// Package dispatch routes clicks to handlers keyed by the role marker of the
// clicked node.
package dispatch

import (
	"log"
	"sync"

	"golang.org/x/net/html"

	"threadview/dom"
)

// Event is one click on a node.
type Event struct {
	Target *html.Node
	// Role is the marker that selected the handler.
	Role dom.Role
}

// Handler handles a click. The result reports whether the default
// navigation of the clicked node is suppressed.
type Handler interface {
	Handle(ev Event) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event) bool

func (f HandlerFunc) Handle(ev Event) bool { return f(ev) }

// Registry maps role markers to handlers.
type Registry struct {
	logger *log.Logger

	mu       sync.RWMutex
	handlers map[dom.Role]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{logger: logger, handlers: make(map[dom.Role]Handler)}
}

// Handle registers h for role, replacing any previous handler.
func (r *Registry) Handle(role dom.Role, h Handler) {
	r.mu.Lock()
	r.handlers[role] = h
	r.mu.Unlock()
}

// HandleFunc registers fn for role.
func (r *Registry) HandleFunc(role dom.Role, fn func(ev Event) bool) {
	r.Handle(role, HandlerFunc(fn))
}

// Roles returns the number of registered roles.
func (r *Registry) Roles() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Lookup returns the handler for the first role marker of target that has
// one. Ancestors are not consulted.
func (r *Registry) Lookup(target *html.Node) (Handler, dom.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range dom.Roles(target) {
		if h, ok := r.handlers[role]; ok {
			return h, role, true
		}
	}
	return nil, "", false
}

// Dispatch runs the handler for target. Unrecognised markers are a no-op
// that does not suppress navigation. A panicking handler is logged and
// treated as not suppressing.
func (r *Registry) Dispatch(target *html.Node) (suppressed bool) {
	h, role, ok := r.Lookup(target)
	if !ok {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("CLICK %s handler panic: %v", role, rec)
			suppressed = false
		}
	}()
	return h.Handle(Event{Target: target, Role: role})
}
