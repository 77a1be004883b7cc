package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/certflow/pkg/schema"
)

// EventLog records and replays a workflow's history on top of a Store.
type EventLog struct {
	store Store
}

// NewEventLog wraps s.
func NewEventLog(s Store) *EventLog {
	return &EventLog{store: s}
}

// Record appends an event of the given type with payload marshaled as JSON.
func (el *EventLog) Record(ctx context.Context, workflowID, eventType string, payload any) (*Event, error) {
	e := &Event{WorkflowID: workflowID, Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		e.Payload = data
	}
	if err := el.store.AppendEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// History returns every event of the workflow, oldest first.
func (el *EventLog) History(ctx context.Context, workflowID string) ([]*Event, error) {
	return el.store.GetEvents(ctx, workflowID, 0)
}

// PublishedPayload is the payload of a workflow_published event.
type PublishedPayload struct {
	Trigger     string `json:"trigger"`
	TriggerCron string `json:"trigger_cron,omitempty"`
	NodeCount   int    `json:"node_count"`
	Warnings    int    `json:"warnings"`
}

// Revision is one publish of a workflow, numbered from 1.
type Revision struct {
	Number   int              `json:"number"`
	Sequence int64            `json:"sequence"`
	Payload  PublishedPayload `json:"payload"`
	Event    *Event           `json:"-"`
}

// Revisions replays the history and returns the publishes in order.
// Returns a STORE_ERROR if sequence gaps are detected.
func (el *EventLog) Revisions(ctx context.Context, workflowID string) ([]Revision, error) {
	events, err := el.History(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in workflow %s: expected %d, got %d", workflowID, expected, e.Sequence)
		}
	}

	revisions := []Revision{}
	for _, e := range events {
		if e.Type != EventWorkflowPublished {
			continue
		}
		var p PublishedPayload
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeStore,
					"corrupt publish event %d in workflow %s", e.Sequence, workflowID).WithCause(err)
			}
		}
		revisions = append(revisions, Revision{
			Number:   len(revisions) + 1,
			Sequence: e.Sequence,
			Payload:  p,
			Event:    e,
		})
	}
	return revisions, nil
}
