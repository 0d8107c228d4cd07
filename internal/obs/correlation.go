package obs

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

var correlationPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// NewCorrelationID validates headerValue as an opaque correlation identifier
// and returns it unchanged, or generates a fresh one if headerValue is empty
// or malformed.
func NewCorrelationID(headerValue string) string {
	if correlationPattern.MatchString(headerValue) {
		return headerValue
	}
	return uuid.New().String()
}

// WithCorrelationID attaches id to ctx so it flows across every suspension
// point: downstream writes, policy decisions, and SAGA steps.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID extracts the correlation identifier from ctx, or "" if absent.
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationKey).(string)
	return v
}
