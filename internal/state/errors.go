package state

import (
	"errors"
	"fmt"
)

var (
	// ErrShutDown is returned by operations attempted after Shutdown.
	ErrShutDown = errors.New("exporter state is shut down")

	// ErrExecutorFull is returned by Spawn when every worker is busy.
	ErrExecutorFull = errors.New("executor has no free worker")
)

// InitError reports that the registry or execution context could not be
// constructed. The exporter cannot run without them.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
