package transport

import "errors"

// ErrNoHandler is returned by Bus.Request when no handler is registered
// for the requested mailbox.
var ErrNoHandler = errors.New("transport: no handler registered for mailbox")
