package gate

import "errors"

// ErrClosed is returned by Wait once the gate has been closed without a decision.
var ErrClosed = errors.New("gate: closed")
