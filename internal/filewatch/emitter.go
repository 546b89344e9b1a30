package filewatch

import (
	"os"
	"sync"
)

// emitter serializes handler calls against Close.
type emitter struct {
	handler Handler

	// emitMu is held for the duration of every handler call.
	emitMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func (e *emitter) emit(kind Kind) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.handler(kind)
}

// markClosed returns false if the emitter was already closed.
func (e *emitter) markClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	return true
}

// waitIdle blocks until any in-flight handler call returns.
func (e *emitter) waitIdle() {
	e.emitMu.Lock()
	e.emitMu.Unlock() //nolint:staticcheck
}

// kindOf stats path to decide whether a burst of events left the file in
// place or removed it.
func kindOf(path string) Kind {
	if _, err := os.Stat(path); err != nil {
		return Removed
	}
	return Changed
}
