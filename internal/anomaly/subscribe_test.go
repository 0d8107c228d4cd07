package anomaly

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHubPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(nil, slog.Default())
	ch, unsubscribe := h.Subscribe(4)
	defer unsubscribe()

	a := Anomaly{ID: uuid.New(), Kind: KindDrift, Severity: SeverityHigh}
	h.Publish(context.Background(), a)

	select {
	case got := <-ch:
		if got.ID != a.ID {
			t.Fatalf("expected anomaly %v, got %v", a.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published anomaly")
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(nil, slog.Default())
	ch, unsubscribe := h.Subscribe(1)
	unsubscribe()

	h.Publish(context.Background(), Anomaly{ID: uuid.New()})

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel was not closed")
	}
}
