package graph

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrDuplicateNode  = errors.New("node id already in use")
	ErrCycle          = errors.New("dependency cycle")
	ErrNotProps       = errors.New("not a props node")
	ErrNotValue       = errors.New("not a value node")
	ErrInvalidConfig  = errors.New("invalid node config")
	ErrWrongGoroutine = errors.New("graph accessed from a goroutine other than its owner")
)

// NodeError attributes an evaluation failure to a node.
type NodeError struct {
	ID  NodeID
	Err error
}

func (e *NodeError) Error() string { return fmt.Sprintf("node %d: %v", e.ID, e.Err) }

func (e *NodeError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
