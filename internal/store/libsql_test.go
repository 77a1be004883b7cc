package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/certflow/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedWorkflow(t *testing.T, s *LibSQLStore, name string) *Workflow {
	t.Helper()
	wf := &Workflow{
		ID:   uuid.New().String(),
		Name: name,
	}
	require.NoError(t, s.CreateWorkflow(context.Background(), wf))
	return wf
}

const sampleGraph = `{"nodes":[{"id":"s","type":"start","data":{"name":"Start"}},{"id":"e","type":"end","data":{"name":"End"}}]}`

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	n, err := runMigrations(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSplitStatements(t *testing.T) {
	script := "-- header only;\nCREATE TABLE a (x INT);\n\n-- note\nCREATE INDEX i ON a (x);\n  ;"
	stmts := splitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE INDEX i")
}

func TestCreateAndGetWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf := &Workflow{
		ID:          uuid.New().String(),
		Name:        "renew example.com",
		Description: "nightly renewal",
		Draft:       json.RawMessage(sampleGraph),
		HasDraft:    true,
	}
	require.NoError(t, s.CreateWorkflow(ctx, wf))

	got, err := s.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "renew example.com", got.Name)
	assert.Equal(t, "nightly renewal", got.Description)
	assert.Equal(t, schema.TriggerManual, got.Trigger)
	assert.Empty(t, got.TriggerCron)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.Content)
	assert.JSONEq(t, sampleGraph, string(got.Draft))
	assert.True(t, got.HasDraft)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateWorkflow_Conflict(t *testing.T) {
	s := newTestStore(t)
	wf := seedWorkflow(t, s, "dup")

	err := s.CreateWorkflow(context.Background(), &Workflow{ID: wf.ID, Name: "again"})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConflict))
}

func TestGetWorkflow_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWorkflow(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestUpdateWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "before")

	name := "after"
	enabled := true
	require.NoError(t, s.UpdateWorkflow(ctx, wf.ID, WorkflowUpdate{Name: &name, Enabled: &enabled}))

	got, err := s.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.True(t, got.Enabled)

	// Empty update is a no-op, even for unknown ids.
	require.NoError(t, s.UpdateWorkflow(ctx, "missing", WorkflowUpdate{}))
	err = s.UpdateWorkflow(ctx, "missing", WorkflowUpdate{Name: &name})
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestSaveDraftAndPublish(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "flow")

	require.NoError(t, s.SaveDraft(ctx, wf.ID, json.RawMessage(sampleGraph)))
	got, err := s.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.True(t, got.HasDraft)
	assert.Nil(t, got.Content)

	require.NoError(t, s.Publish(ctx, wf.ID, Publication{
		Content:     json.RawMessage(sampleGraph),
		Trigger:     schema.TriggerScheduled,
		TriggerCron: "0 3 * * *",
	}))
	got, err = s.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.False(t, got.HasDraft)
	assert.JSONEq(t, sampleGraph, string(got.Content))
	assert.JSONEq(t, sampleGraph, string(got.Draft))
	assert.Equal(t, schema.TriggerScheduled, got.Trigger)
	assert.Equal(t, "0 3 * * *", got.TriggerCron)

	assert.True(t, schema.IsCode(s.SaveDraft(ctx, "missing", nil), schema.ErrCodeNotFound))
	assert.True(t, schema.IsCode(s.Publish(ctx, "missing", Publication{}), schema.ErrCodeNotFound))
}

func TestListWorkflows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c"} {
		wf := &Workflow{ID: name, Name: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateWorkflow(ctx, wf))
	}
	require.NoError(t, s.Publish(ctx, "b", Publication{Content: json.RawMessage(sampleGraph), Trigger: schema.TriggerScheduled, TriggerCron: "@daily"}))
	require.NoError(t, s.SaveDraft(ctx, "c", json.RawMessage(sampleGraph)))

	all, err := s.ListWorkflows(ctx, WorkflowFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	scheduled, err := s.ListWorkflows(ctx, WorkflowFilter{Trigger: schema.TriggerScheduled})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "b", scheduled[0].ID)

	drafts := true
	pending, err := s.ListWorkflows(ctx, WorkflowFilter{HasDraft: &drafts})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].ID)

	page, err := s.ListWorkflows(ctx, WorkflowFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
}

func TestDeleteWorkflow_CascadesEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "gone")

	require.NoError(t, s.AppendEvent(ctx, &Event{WorkflowID: wf.ID, Type: EventWorkflowCreated}))
	require.NoError(t, s.DeleteWorkflow(ctx, wf.ID))

	_, err := s.GetWorkflow(ctx, wf.ID)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	events, err := s.GetEvents(ctx, wf.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.True(t, schema.IsCode(s.DeleteWorkflow(ctx, wf.ID), schema.ErrCodeNotFound))
}

func TestAppendAndGetEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "events")

	for _, typ := range []string{EventWorkflowCreated, EventDraftSaved, EventWorkflowPublished} {
		e := &Event{WorkflowID: wf.ID, Type: typ, Payload: json.RawMessage(`{"k":1}`)}
		require.NoError(t, s.AppendEvent(ctx, e))
		assert.NotZero(t, e.ID)
	}

	events, err := s.GetEvents(ctx, wf.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
	assert.Equal(t, EventWorkflowPublished, events[2].Type)
	assert.JSONEq(t, `{"k":1}`, string(events[2].Payload))

	since, err := s.GetEvents(ctx, wf.ID, 2)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(3), since[0].Sequence)
}
