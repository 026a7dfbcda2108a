// Package transport defines the contracts the core exchanges with the
// external message transport (§1 "Message transport" — stream pub/sub and
// request/reply mailboxes carrying framed messages) and an in-memory
// implementation suitable for tests and for a single-process deployment.
package transport

import (
	"context"
	"sync"
)

// Publisher sends a framed message onto a named stream (e.g. the alert
// output stream, or the asset inventory feed consumed by the
// Configurator).
type Publisher interface {
	Publish(ctx context.Context, stream string, payload []byte) error
}

// Subscriber delivers every message published to a named stream to fn,
// until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, stream string, fn func(payload []byte)) error
}

// Requester sends a request and waits for exactly one reply, modeling the
// mailbox request/reply surface (§4.6).
type Requester interface {
	Request(ctx context.Context, mailbox string, payload []byte) ([]byte, error)
}

// Handler answers one request/reply mailbox message.
type Handler func(ctx context.Context, payload []byte) []byte

// Responder registers a Handler for every message sent to a mailbox.
type Responder interface {
	HandleMailbox(ctx context.Context, mailbox string, handler Handler) error
}

// Bus is a single in-process transport implementing every contract above:
// a fan-out pub/sub stream per name, and a synchronous call-and-respond
// mailbox per name. It exists so the Evaluator, Configurator and
// request/reply surface can be wired and tested without a real message
// broker; production deployments swap it for an adapter over the
// organization's actual transport.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]func([]byte)
	handlers    map[string]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]func([]byte)),
		handlers:    make(map[string]Handler),
	}
}

// Publish fans payload out to every subscriber of stream, synchronously,
// in subscription order. A failure is not possible for the in-memory bus;
// the error return exists to satisfy Publisher for callers that retry on
// transport failure (§4.3's "transport errors retry next tick" policy
// still applies against a real broker).
func (b *Bus) Publish(ctx context.Context, stream string, payload []byte) error {
	b.mu.RLock()
	subs := append([]func([]byte){}, b.subscribers[stream]...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(payload)
	}
	return nil
}

// Subscribe registers fn for every future Publish to stream. Subscribe
// returns immediately; ctx is accepted for interface symmetry with a real
// broker's subscription lifecycle and is not otherwise used by Bus.
func (b *Bus) Subscribe(ctx context.Context, stream string, fn func(payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[stream] = append(b.subscribers[stream], fn)
	return nil
}

// HandleMailbox registers the handler that answers Request calls against
// mailbox. Only one handler may be registered per mailbox.
func (b *Bus) HandleMailbox(ctx context.Context, mailbox string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[mailbox] = handler
	return nil
}

// Request calls the registered handler for mailbox synchronously and
// returns its reply. Returns ErrNoHandler if nothing is registered.
func (b *Bus) Request(ctx context.Context, mailbox string, payload []byte) ([]byte, error) {
	b.mu.RLock()
	handler, ok := b.handlers[mailbox]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNoHandler
	}
	return handler(ctx, payload), nil
}
