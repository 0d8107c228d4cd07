package adapter

import (
	"encoding/json"

	"github.com/aegishq/controlplane/internal/store"
)

// Source identifies one of the supported webhook adapters.
type Source string

const (
	SourceZapier  Source = "zapier"
	SourceN8N     Source = "n8n"
	SourceMake    Source = "make"
	SourceAirflow Source = "airflow"
)

// SourceWorkflowSource maps an adapter Source to the store's WorkflowSource.
func (s Source) SourceWorkflowSource() store.WorkflowSource {
	return store.WorkflowSource(s)
}

// Envelope is the parsed webhook request the pipeline operates on.
type Envelope struct {
	Source         Source
	CorrelationID  string
	IdempotencyKey string
	Signature      string
	TimestampMS    int64
	Body           []byte
}

// rawFields is the lenient, source-agnostic shape every adapter payload is
// decoded into before normalization. Unknown top-level fields are not kept
// on their own; when the body has no data field, Normalize keeps the whole
// body as Data.
type rawFields struct {
	WorkflowID  string          `json:"workflow_id"`
	ExecutionID string          `json:"execution_id"`
	EventType   string          `json:"event_type"`
	AgentID     string          `json:"agent_id"`
	Data        json.RawMessage `json:"data"`
}

// Normalize decodes body into the canonical shape needed to build a
// store.Event, tolerant of unknown/missing fields across the four adapters.
func Normalize(source Source, body []byte) (rawFields, error) {
	var rf rawFields
	if err := json.Unmarshal(body, &rf); err != nil {
		return rawFields{}, err
	}
	if rf.EventType == "" {
		rf.EventType = string(source) + ".event"
	}
	if rf.Data == nil {
		rf.Data = json.RawMessage(body)
	}
	return rf, nil
}
