package entities

import (
	"time"

	"github.com/google/uuid"
)

// MatchEventType identifies what happened in a match lifecycle event
type MatchEventType string

const (
	MatchEventRequestCreated         MatchEventType = "request.created"
	MatchEventRequestMatched         MatchEventType = "request.matched"
	MatchEventRequestCancelled       MatchEventType = "request.cancelled"
	MatchEventRequestFulfilled       MatchEventType = "request.fulfilled"
	MatchEventProviderWaitTimeUpdate MatchEventType = "provider.wait_time_updated"
)

// MatchEvent is published after a request or provider changes state
type MatchEvent struct {
	ID         string                 `json:"id"`
	EventType  MatchEventType         `json:"event_type"`
	RequestID  string                 `json:"request_id,omitempty"`
	ProviderID string                 `json:"provider_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// NewMatchEvent creates a new event with a fresh id
func NewMatchEvent(eventType MatchEventType, requestID, providerID string, fields map[string]interface{}) *MatchEvent {
	return &MatchEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		RequestID:  requestID,
		ProviderID: providerID,
		Timestamp:  time.Now().UTC(),
		Fields:     fields,
	}
}
