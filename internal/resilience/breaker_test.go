package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	cfg := Config{FailureThreshold: 3, RecoveryTimeout: 50 * time.Millisecond, SuccessThreshold: 1}
	b := NewBreaker("downstream", cfg)

	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected breaker open after threshold, got %s", b.State())
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 1}
	b := NewBreaker("downstream", cfg)

	_ = b.Execute(func() error { return errors.New("boom") })
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open call to succeed, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after half-open success, got %s", b.State())
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 1}
	b := NewBreaker("downstream", cfg)

	_ = b.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	_ = b.Execute(func() error { return errors.New("boom again") })
	if b.State() != StateOpen {
		t.Fatalf("expected reopen after half-open failure, got %s", b.State())
	}
}

func TestRegistryIsolatesTargets(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, RecoveryTimeout: time.Second, SuccessThreshold: 1})

	_ = r.For("a").Execute(func() error { return errors.New("boom") })

	if r.For("a").State() != StateOpen {
		t.Fatalf("expected target a open")
	}
	if r.For("b").State() != StateClosed {
		t.Fatalf("expected target b unaffected, got %s", r.For("b").State())
	}
}
