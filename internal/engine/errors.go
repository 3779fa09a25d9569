package engine

import "errors"

// ErrNoToolName is returned by Decide for a request without a tool name.
var ErrNoToolName = errors.New("tool name required")
