package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/certflow/pkg/schema"
)

func TestEventLog_Revisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "history")
	el := NewEventLog(s)

	_, err := el.Record(ctx, wf.ID, EventWorkflowCreated, nil)
	require.NoError(t, err)
	_, err = el.Record(ctx, wf.ID, EventWorkflowPublished, PublishedPayload{Trigger: schema.TriggerManual, NodeCount: 2})
	require.NoError(t, err)
	_, err = el.Record(ctx, wf.ID, EventDraftSaved, nil)
	require.NoError(t, err)
	e, err := el.Record(ctx, wf.ID, EventWorkflowPublished, PublishedPayload{
		Trigger: schema.TriggerScheduled, TriggerCron: "0 0 * * *", NodeCount: 5, Warnings: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.Sequence)

	history, err := el.History(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	revs, err := el.Revisions(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 1, revs[0].Number)
	assert.Equal(t, int64(2), revs[0].Sequence)
	assert.Equal(t, 2, revs[0].Payload.NodeCount)
	assert.Equal(t, 2, revs[1].Number)
	assert.Equal(t, "0 0 * * *", revs[1].Payload.TriggerCron)
	assert.Equal(t, 1, revs[1].Payload.Warnings)
}

func TestEventLog_NoHistory(t *testing.T) {
	s := newTestStore(t)
	revs, err := NewEventLog(s).Revisions(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestEventLog_SequenceGap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s, "gappy")

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_events (workflow_id, event_type, timestamp, sequence) VALUES (?, ?, ?, 2)`,
		wf.ID, EventWorkflowPublished, time.Now().UTC())
	require.NoError(t, err)

	_, err = NewEventLog(s).Revisions(ctx, wf.ID)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))
}
