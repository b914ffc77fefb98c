package audio

import (
	"sync"
	"time"
)

// Gate is the process-wide output gate: while the assistant is speaking,
// the gate is paused and every microphone-reading path blocks in
// WaitIfPaused instead of delivering frames, so the system never hears its
// own voice. Exactly one controller (the speaking path) calls Pause; any
// number of readers may wait.
//
// The gate is an explicitly owned handle injected into the components that
// need it — there is no package-level default instance.
type Gate struct {
	mu sync.Mutex
	// unpaused is closed while the gate is open. Pausing swaps in a fresh
	// open channel; resuming closes it, waking every waiter at once.
	unpaused chan struct{}
	paused   bool
}

// NewGate returns an open (unpaused) gate.
func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{unpaused: ch}
}

// Pause opens or closes the gate. Pausing an already-paused gate (or
// resuming an already-open one) is a no-op.
func (g *Gate) Pause(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if paused == g.paused {
		return
	}
	g.paused = paused
	if paused {
		g.unpaused = make(chan struct{})
	} else {
		close(g.unpaused)
	}
}

// Paused reports whether the gate is currently paused.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// WaitIfPaused blocks until the gate is open or timeout elapses. It returns
// true if the gate is open (immediately or after resuming) and false on
// timeout. Callers must always pass a finite timeout: a controller that
// never resumes must not be able to park the microphone thread forever.
func (g *Gate) WaitIfPaused(timeout time.Duration) bool {
	g.mu.Lock()
	ch := g.unpaused
	g.mu.Unlock()

	select {
	case <-ch:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
