package adapter

import (
	"context"
	"testing"
)

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var order []string
	s := &Saga{CorrelationID: "corr-1"}

	s.Append(SagaStep{TaskID: "a", Compensate: func(context.Context) error {
		order = append(order, "a")
		return nil
	}})
	s.Append(SagaStep{TaskID: "b", Compensate: func(context.Context) error {
		order = append(order, "b")
		return nil
	}})
	s.Append(SagaStep{TaskID: "c", Compensate: func(context.Context) error {
		order = append(order, "c")
		return nil
	}})

	failures := s.Compensate(context.Background())
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}

	want := []string{"c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestSagaCollectsAllCompensationFailures(t *testing.T) {
	s := &Saga{CorrelationID: "corr-2"}
	s.Append(SagaStep{TaskID: "a", Compensate: func(context.Context) error { return errBoom }})
	s.Append(SagaStep{TaskID: "b", Compensate: func(context.Context) error { return nil }})
	s.Append(SagaStep{TaskID: "c", Compensate: func(context.Context) error { return errBoom }})

	failures := s.Compensate(context.Background())
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d: %v", len(failures), failures)
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
