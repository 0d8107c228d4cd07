package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRedactString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "contact john.doe@example.com please", "[REDACTED-email]"},
		{"ssn", "My SSN is 123-45-6789", "[REDACTED-ssn]"},
		{"clean", "What is the weather today?", "What is the weather today?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactString(tt.in, RedactMask)
			if tt.name == "clean" {
				if got != tt.want {
					t.Fatalf("got %q, want %q", got, tt.want)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestRedactorHandlesSensitiveFieldNames(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(NewRedactor(base, RedactMask))

	logger.Info("login attempt", "password", "hunter2", "user", "alice")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["password"] != "[REDACTED]" {
		t.Fatalf("password field not redacted: %v", entry["password"])
	}
	if entry["user"] != "alice" {
		t.Fatalf("unrelated field was mangled: %v", entry["user"])
	}
}

func TestRedactorHashMode(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	h := NewRedactor(base, RedactHash)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "email jane@example.com sent", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "jane@example.com") {
		t.Fatalf("raw email leaked into log line: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "sha256:") {
		t.Fatalf("expected hash marker in log line: %s", buf.String())
	}
}
