// Package events carries SDK notifications (status changes, extraction
// milestones, realtime frames) from producers to subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type names an event.
type Type string

const (
	TypeEntityDetected       Type = "entity:detected"
	TypeExtractionStarted    Type = "extraction:started"
	TypeStatusChanged        Type = "extraction:status_changed"
	TypeDataAvailable        Type = "extraction:data_available"
	TypeExtractionCompleted  Type = "extraction:completed"
	TypeRealtimeConnected    Type = "realtime:connected"
	TypeRealtimeDisconnected Type = "realtime:disconnected"
	TypeRealtimeEvent        Type = "realtime:event"
	TypeRealtimeHeartbeat    Type = "realtime:heartbeat"
	TypeRealtimeError        Type = "realtime:error"
)

// Event is a notification before transport encoding.
type Event struct {
	Type       Type
	WorkflowID string
	Payload    any
	Timestamp  time.Time
}

// New creates an event stamped with the current time.
func New(eventType Type, workflowID string, payload any) Event {
	return Event{
		Type:       eventType,
		WorkflowID: workflowID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher receives events. Publish is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

// Fanout delivers every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) {})

// StatusChanged reports a change in a polled workflow's (state, run state) pair.
// Previous fields are empty on the first observation; an empty run state means the server reported none.
type StatusChanged struct {
	WorkflowID       string `json:"workflowId"`
	PreviousState    string `json:"previousState,omitempty"`
	PreviousRunState string `json:"previousRunState,omitempty"`
	CurrentState     string `json:"currentState"`
	CurrentRunState  string `json:"currentRunState,omitempty"`
}

// ExtractionStarted is published once a workflow has been created and started.
type ExtractionStarted struct {
	WorkflowID string   `json:"workflowId"`
	Name       string   `json:"name"`
	URLs       []string `json:"urls"`
	JobID      string   `json:"jobId,omitempty"`
}

// DataAvailable is published after result records were fetched.
type DataAvailable struct {
	WorkflowID  string `json:"workflowId"`
	RecordCount int    `json:"recordCount"`
	IsPartial   bool   `json:"isPartial"`
	TotalCount  int    `json:"totalCount,omitempty"`
}

// ExtractionCompleted is published when a waited extraction reached a terminal state.
type ExtractionCompleted struct {
	WorkflowID  string `json:"workflowId"`
	Success     bool   `json:"success"`
	FinalState  string `json:"finalState"`
	RecordCount int    `json:"recordCount,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EntityDetected is published when AI entity detection produced a prediction.
type EntityDetected struct {
	EntityName string   `json:"entityName"`
	Fields     []string `json:"fields"`
	URL        string   `json:"url"`
	Navigation string   `json:"navigationMode,omitempty"`
}

// RealtimeConnected is published when the realtime socket subscribed successfully.
type RealtimeConnected struct {
	TeamID string `json:"teamId"`
}

// RealtimeDisconnected is published when the realtime socket closed.
type RealtimeDisconnected struct {
	Reason    string `json:"reason"`
	WillRetry bool   `json:"willRetry"`
}

// RealtimeMessage wraps a frame received over the realtime socket.
type RealtimeMessage struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RealtimeError reports a realtime failure that did not stop the client.
type RealtimeError struct {
	Message string `json:"message"`
}

// Envelope is the serialized form of an event stored and broadcast over Redis.
type Envelope struct {
	ID         int64           `json:"id"`
	Type       Type            `json:"type"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Timestamp  time.Time       `json:"ts"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope encodes event under sequence id.
func NewEnvelope(id int64, event Event) (Envelope, error) {
	if event.Type == "" {
		return Envelope{}, fmt.Errorf("events: event type is required")
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Envelope{
		ID:         id,
		Type:       event.Type,
		WorkflowID: event.WorkflowID,
		Timestamp:  ts.UTC(),
		Data:       payload,
	}, nil
}
