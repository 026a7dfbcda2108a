package alert

import (
	"fmt"

	"github.com/r3e-labs/ruleengine/internal/errcode"
)

var (
	errRejectedDirectResolve = fmt.Errorf("RESOLVED may not be requested directly: %w", errcode.ErrBadStatus)
	errCannotAckResolved     = fmt.Errorf("cannot acknowledge a resolved alert: %w", errcode.ErrBadStatus)
	errCannotClearAck        = fmt.Errorf("ACTIVE cannot be requested to clear an ack state, only evaluation resolves it: %w", errcode.ErrBadStatus)
)
