// Package overlay is the process-wide modal navigation stack. Any component
// pushes a view onto it to show a modal (error, backend-not-ready, reward
// picker); back and home pop it.
package overlay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autofighter/client/internal/transport"
)

// ViewMain is the default view when nothing is stacked.
const ViewMain = "main"

const (
	// ViewError presents a normalized backend error.
	ViewError = "error"
	// ViewBackendNotReady is the dedicated startup overlay for an
	// unreachable backend, distinct from the generic error view.
	ViewBackendNotReady = "backend-not-ready"
)

// Entry is one modal view plus its payload.
type Entry struct {
	View string
	Data map[string]any
}

type Channel struct {
	mu      sync.Mutex
	current Entry
	stack   []Entry
	watch   chan Entry
}

func NewChannel() *Channel {
	return &Channel{
		current: Entry{View: ViewMain, Data: map[string]any{}},
		watch:   make(chan Entry, 16),
	}
}

// Open pushes the current view onto the stack and makes {view, data}
// current. Error payloads go through the same numeric-message normalization
// as the transport and are additionally logged.
func (c *Channel) Open(view string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if view == ViewError {
		data = normalizeErrorData(data)
		log.Error().
			Interface("data", data).
			Msg("error overlay opened")
	}

	c.mu.Lock()
	c.stack = append(c.stack, c.current)
	c.current = Entry{View: view, Data: data}
	entry := c.current
	c.mu.Unlock()

	c.notify(entry)
}

// Back pops the most recent saved entry, or resets to main when the stack is
// empty.
func (c *Channel) Back() {
	c.mu.Lock()
	if n := len(c.stack); n > 0 {
		c.current = c.stack[n-1]
		c.stack = c.stack[:n-1]
	} else {
		c.current = Entry{View: ViewMain, Data: map[string]any{}}
	}
	entry := c.current
	c.mu.Unlock()

	c.notify(entry)
}

// Home clears the whole stack and resets to main.
func (c *Channel) Home() {
	c.mu.Lock()
	c.stack = nil
	c.current = Entry{View: ViewMain, Data: map[string]any{}}
	entry := c.current
	c.mu.Unlock()

	c.notify(entry)
}

// Current returns the active view and payload.
func (c *Channel) Current() Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Depth reports how many entries are stacked below the current view.
func (c *Channel) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stack)
}

// Watch exposes view changes to a UI frontend. Sends never block; a slow
// consumer misses intermediate states, not the latest one.
func (c *Channel) Watch() <-chan Entry {
	return c.watch
}

func (c *Channel) notify(entry Entry) {
	for {
		select {
		case c.watch <- entry:
			return
		default:
		}
		// Buffer full: drop the oldest queued entry and retry.
		select {
		case <-c.watch:
		default:
		}
	}
}

// PushError implements transport.ErrorSink.
func (c *Channel) PushError(e *transport.Error) {
	c.Open(ViewError, map[string]any{
		"message":   e.Message,
		"traceback": e.Traceback,
		"status":    e.Status,
		"code":      e.Code,
	})
}

// PushBackendNotReady shows the dedicated startup overlay carrying the
// attempted base URL.
func (c *Channel) PushBackendNotReady(apiBase, message string) {
	c.Open(ViewBackendNotReady, map[string]any{
		"apiBase": apiBase,
		"message": transport.NormalizeMessage(message, ""),
	})
}

func normalizeErrorData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	msg, _ := out["message"].(string)
	msg = transport.NormalizeMessage(msg, "")
	if msg == "" {
		msg = "Unknown error"
	}
	out["message"] = msg
	return out
}
