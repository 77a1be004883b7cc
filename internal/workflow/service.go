// Package workflow manages stored workflow records: drafts, imports and
// validated publishing.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/internal/logging"
	"github.com/rendis/certflow/internal/store"
	"github.com/rendis/certflow/internal/validation"
	"github.com/rendis/certflow/pkg/schema"
)

// Service coordinates the store, the codec and the validator.
type Service struct {
	store     store.Store
	events    *store.EventLog
	validator validation.Validator
	logger    *slog.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(s store.Store, v validation.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     s,
		events:    store.NewEventLog(s),
		validator: v,
		logger:    logger,
	}
}

// CreateParams holds the fields of a new workflow record.
type CreateParams struct {
	Name        string
	Description string
	// Graph seeds the draft. Nil leaves the record without a draft.
	Graph *schema.Graph
}

// Create stores a new workflow record with a fresh id.
func (s *Service) Create(ctx context.Context, p CreateParams) (*store.Workflow, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeInvalidArgument, "workflow name is required")
	}

	wf := &store.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: p.Description,
		Trigger:     schema.TriggerManual,
	}
	if p.Graph != nil {
		draft, err := codec.Serialize(p.Graph, codec.FormatJSON)
		if err != nil {
			return nil, err
		}
		wf.Draft = draft
		wf.HasDraft = true
	}

	ctx = logging.WithWorkflowID(ctx, wf.ID)
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, storeError(err, "create workflow")
	}
	s.record(ctx, store.EventWorkflowCreated, map[string]any{"name": wf.Name})
	s.logger.InfoContext(ctx, "workflow created", "name", wf.Name)
	return wf, nil
}

// Get returns the stored record.
func (s *Service) Get(ctx context.Context, id string) (*store.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, storeError(err, "get workflow")
	}
	return wf, nil
}

// List returns stored records matching filter, newest first.
func (s *Service) List(ctx context.Context, filter store.WorkflowFilter) ([]*store.Workflow, error) {
	wfs, err := s.store.ListWorkflows(ctx, filter)
	if err != nil {
		return nil, storeError(err, "list workflows")
	}
	if wfs == nil {
		wfs = []*store.Workflow{}
	}
	return wfs, nil
}

// Delete removes the record and its history.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx = logging.WithWorkflowID(ctx, id)
	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return storeError(err, "delete workflow")
	}
	s.logger.InfoContext(ctx, "workflow deleted")
	return nil
}

// History returns the record's publishes, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]store.Revision, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.events.Revisions(ctx, id)
}

// SaveDraft stores g as the record's draft. Validation issues are returned
// for display but never block the save.
func (s *Service) SaveDraft(ctx context.Context, id string, g *schema.Graph) (*schema.ValidationResult, error) {
	ctx = logging.WithWorkflowID(ctx, id)
	if g == nil {
		g = &schema.Graph{}
	}

	draft, err := codec.Serialize(g, codec.FormatJSON)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveDraft(ctx, id, draft); err != nil {
		return nil, storeError(err, "save draft")
	}

	result := s.validator.Validate(g)
	s.record(ctx, store.EventDraftSaved, map[string]any{
		"node_count": len(g.Nodes),
		"errors":     len(result.Errors),
	})
	s.logger.DebugContext(ctx, "draft saved", "nodes", len(g.Nodes), "errors", len(result.Errors))
	return result, nil
}

// ImportDraft decodes content and saves it as the record's draft. Parse
// failures abort; validation issues come back in the result.
func (s *Service) ImportDraft(ctx context.Context, id string, content []byte, format codec.Format) (*codec.ImportResult, error) {
	result, err := codec.Import(content, format, s.validator)
	if err != nil {
		return nil, err
	}
	if result.Graph == nil {
		return nil, schema.NewError(schema.ErrCodeInvalidContent, "document is empty")
	}
	if _, err := s.SaveDraft(ctx, id, result.Graph); err != nil {
		return nil, err
	}
	return result, nil
}

// PublishResult is the outcome of a successful publish.
type PublishResult struct {
	Workflow *store.Workflow `json:"workflow"`
	Warnings []schema.Issue  `json:"warnings"`
	Revision int             `json:"revision"`
}

// Publish validates the record's draft and makes it the live content. Any
// error-severity issue blocks publishing with a VALIDATION_ERROR carrying the
// issues. The trigger settings are taken from the start node's config.
func (s *Service) Publish(ctx context.Context, id string) (*PublishResult, error) {
	ctx = logging.WithWorkflowID(ctx, id)

	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	source := wf.Draft
	if len(source) == 0 {
		source = wf.Content
	}
	g, err := codec.Deserialize(source, codec.FormatJSON)
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = &schema.Graph{}
	}

	result := s.validator.Validate(g)
	if !result.Valid() {
		s.logger.WarnContext(ctx, "publish blocked", "errors", len(result.Errors))
		return nil, result.ToError()
	}

	content, err := codec.Serialize(g, codec.FormatJSON)
	if err != nil {
		return nil, err
	}
	trigger, cron := DeriveTrigger(g)
	if err := s.store.Publish(ctx, id, store.Publication{Content: content, Trigger: trigger, TriggerCron: cron}); err != nil {
		return nil, storeError(err, "publish workflow")
	}

	payload := store.PublishedPayload{
		Trigger:     trigger,
		TriggerCron: cron,
		NodeCount:   len(g.Nodes),
		Warnings:    len(result.Warnings),
	}
	s.record(ctx, store.EventWorkflowPublished, payload)

	published, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	revisions, err := s.events.Revisions(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "read revisions", "error", err)
	}

	s.logger.InfoContext(ctx, "workflow published", "trigger", trigger, "warnings", len(result.Warnings))
	warnings := result.Warnings
	if warnings == nil {
		warnings = []schema.Issue{}
	}
	return &PublishResult{Workflow: published, Warnings: warnings, Revision: len(revisions)}, nil
}

// DeriveTrigger reads the trigger mode and cron expression from the first
// node when it is a start node. The cron is only kept for scheduled triggers.
func DeriveTrigger(g *schema.Graph) (trigger, cron string) {
	trigger = schema.TriggerManual
	if g == nil || len(g.Nodes) == 0 || g.Nodes[0] == nil || g.Nodes[0].Type != schema.NodeTypeStart {
		return trigger, ""
	}
	var cfg schema.StartConfig
	if err := schema.DecodeConfig(g.Nodes[0], &cfg); err != nil {
		return trigger, ""
	}
	if cfg.Trigger == schema.TriggerScheduled {
		return schema.TriggerScheduled, strings.TrimSpace(cfg.TriggerCron)
	}
	return trigger, ""
}

// record appends a history event. History is best-effort: failures are logged.
func (s *Service) record(ctx context.Context, eventType string, payload any) {
	if _, err := s.events.Record(ctx, logging.WorkflowID(ctx), eventType, payload); err != nil {
		s.logger.WarnContext(ctx, "record history event", "event", eventType, "error", err)
	}
}

// storeError keeps structured errors and wraps anything else as STORE_ERROR.
func storeError(err error, op string) error {
	var cerr *schema.CertflowError
	if errors.As(err, &cerr) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}
