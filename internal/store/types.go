package store

import (
	"encoding/json"
	"time"
)

// Workflow is a stored workflow record. Content is the published graph and
// Draft the editor copy; both are JSON documents of the form {"nodes": [...]}.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Trigger     string          `json:"trigger"`
	TriggerCron string          `json:"trigger_cron,omitempty"`
	Enabled     bool            `json:"enabled"`
	Content     json.RawMessage `json:"content,omitempty"`
	Draft       json.RawMessage `json:"draft,omitempty"`
	HasDraft    bool            `json:"has_draft"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// WorkflowUpdate holds the editable record fields. Nil fields are left unchanged.
type WorkflowUpdate struct {
	Name        *string
	Description *string
	Enabled     *bool
}

// WorkflowFilter narrows ListWorkflows.
type WorkflowFilter struct {
	Trigger  string
	Enabled  *bool
	HasDraft *bool
	Limit    int
	Offset   int
}

// Publication is what Publish writes: the validated graph and the trigger
// settings derived from its start node.
type Publication struct {
	Content     json.RawMessage
	Trigger     string
	TriggerCron string
}

// Event is one entry of a workflow's append-only history.
type Event struct {
	ID         int64           `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Type       string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}

// History event types.
const (
	EventWorkflowCreated   = "workflow_created"
	EventDraftSaved        = "draft_saved"
	EventWorkflowPublished = "workflow_published"
	EventWorkflowUpdated   = "workflow_updated"
)
