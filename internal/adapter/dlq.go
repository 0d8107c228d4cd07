package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/store"
)

// DLQSink persists terminally failed requests. A 30-day TTL is enforced by
// retention policy at the store layer, not here.
type DLQSink struct {
	store *store.Store
}

// NewDLQSink builds a DLQSink backed by store.
func NewDLQSink(s *store.Store) *DLQSink {
	return &DLQSink{store: s}
}

// Push appends a raw envelope with its error to the DLQ, keyed by
// correlation ID so repeated failures for the same request accumulate
// attempts instead of duplicating rows.
func (d *DLQSink) Push(ctx context.Context, tenantID uuid.UUID, env, source, correlationID string, payload json.RawMessage, cause error) error {
	return d.store.AppendDLQEntry(ctx, store.DLQEntry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Env:           env,
		Source:        source,
		Payload:       payload,
		Error:         cause.Error(),
		CorrelationID: correlationID,
		Attempts:      1,
		FirstSeen:     time.Now(),
		LastSeen:      time.Now(),
	})
}
