package service

import (
	"context"
	"time"
)

// ObservationHooks lets a caller observe the lifecycle of an operation
// (evaluation tick, mailbox command, configurator event) without coupling
// the component to a specific metrics or tracing backend.
type ObservationHooks struct {
	OnStart    func(ctx context.Context, meta map[string]string)
	OnComplete func(ctx context.Context, meta map[string]string, err error, duration time.Duration)
}

// NoopObservationHooks discards every call.
var NoopObservationHooks = ObservationHooks{}

// StartObservation invokes hooks.OnStart and returns a completion func that
// invokes hooks.OnComplete with the elapsed duration and the error it is
// passed. Safe to call with a zero-value ObservationHooks.
func StartObservation(ctx context.Context, hooks ObservationHooks, meta map[string]string) func(error) {
	start := time.Now()
	if hooks.OnStart != nil {
		hooks.OnStart(ctx, meta)
	}
	return func(err error) {
		if hooks.OnComplete != nil {
			hooks.OnComplete(ctx, meta, err, time.Since(start))
		}
	}
}

// DispatchHooks is an alias kept for callers that observe dispatch of a
// single message through an actor's mailbox rather than a full operation.
type DispatchHooks = ObservationHooks

// NoopDispatchHooks discards every call.
var NoopDispatchHooks = DispatchHooks{}

// StartDispatch is StartObservation under the DispatchHooks name.
func StartDispatch(ctx context.Context, hooks DispatchHooks, meta map[string]string) func(error) {
	return StartObservation(ctx, hooks, meta)
}
