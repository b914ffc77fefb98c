package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackendDown = errors.New("backend down")

func alwaysFail() error { return errBackendDown }
func alwaysOK() error   { return nil }

func TestCircuitBreaker_ClosedForwardsCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3})

	calls := 0
	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if calls != 5 {
		t.Fatalf("forwarded %d calls, want 5", calls)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(alwaysFail); !errors.Is(err, errBackendDown) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}

	// Open breaker rejects without invoking fn.
	invoked := false
	err := cb.Execute(func() error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if invoked {
		t.Fatal("open breaker still invoked the callback")
	}
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3})

	// Two failures, a success, then two more failures: never three in a
	// row, so the breaker stays closed.
	cb.Execute(alwaysFail)
	cb.Execute(alwaysFail)
	cb.Execute(alwaysOK)
	cb.Execute(alwaysFail)
	cb.Execute(alwaysFail)

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
	})

	cb.Execute(alwaysFail)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(15 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", got)
	}
}

func TestCircuitBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:    1,
		ResetTimeout:   5 * time.Millisecond,
		HalfOpenProbes: 2,
	})

	cb.Execute(alwaysFail)
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(alwaysOK); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state after successful probes = %v, want closed", got)
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:    1,
		ResetTimeout:   5 * time.Millisecond,
		HalfOpenProbes: 3,
	})

	cb.Execute(alwaysFail)
	time.Sleep(10 * time.Millisecond)

	if err := cb.Execute(alwaysFail); !errors.Is(err, errBackendDown) {
		t.Fatalf("probe err = %v, want backend error", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state after failed probe = %v, want open", got)
	}
	if err := cb.Execute(alwaysOK); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "stt/deepgram"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.probeBudget != 3 {
		t.Errorf("probeBudget = %d, want 3", cb.probeBudget)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("initial state = %v, want closed", got)
	}
}

func TestState_String(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
