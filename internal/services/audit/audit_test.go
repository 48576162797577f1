package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mongoaudit "github.com/meridianhq/eventcore/internal/adapters/mongodb/audit"
	"github.com/meridianhq/eventcore/internal/domain/event"
)

func TestInvoke_MapsEventTypeToAuditAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)

	var captured mongoaudit.Record
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r mongoaudit.Record) error {
		captured = r
		return nil
	})

	h := NewHandler(repo, false)

	evt := event.Event{AggregateID: "act-1", AggregateType: "Action", Type: "action.created", Payload: map[string]any{"name": "send-email"}}

	require.NoError(t, h.Invoke(context.Background(), evt))
	assert.Equal(t, "create", captured.Action)
	assert.Equal(t, "act-1", captured.AggregateID)
}

func TestInvoke_CapturesCorrelationIDActorAndOccurredAt(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)

	var captured mongoaudit.Record
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r mongoaudit.Record) error {
		captured = r
		return nil
	})

	h := NewHandler(repo, false)

	occurredAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	evt := event.Event{
		AggregateID:   "act-1",
		AggregateType: "Action",
		Type:          "action.created",
		Payload:       map[string]any{"name": "send-email"},
		Metadata: event.Metadata{
			CorrelationID: "c1",
			CausationID:   "cause-1",
			Actor:         event.Actor{ID: "user-1", Email: "u@example.com"},
		},
		OccurredAt: occurredAt,
	}

	require.NoError(t, h.Invoke(context.Background(), evt))
	assert.Equal(t, "c1", captured.CorrelationID)
	assert.Equal(t, "user-1", captured.Actor.ID)
	assert.Equal(t, "u@example.com", captured.Actor.Email)
	assert.Equal(t, "cause-1", captured.Metadata["causationId"])
	assert.Equal(t, occurredAt, captured.OccurredAt)
}

func TestInvoke_MapsUpdatedEventToUpdateAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)

	var captured mongoaudit.Record
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r mongoaudit.Record) error {
		captured = r
		return nil
	})

	h := NewHandler(repo, false)

	evt := event.Event{AggregateID: "act-1", AggregateType: "Action", Type: "action.updated", Payload: map[string]any{"name": "send-sms"}}

	require.NoError(t, h.Invoke(context.Background(), evt))
	assert.Equal(t, "update", captured.Action)
}

func TestInvoke_ExtractsChangesFromPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)

	var captured mongoaudit.Record
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r mongoaudit.Record) error {
		captured = r
		return nil
	})

	h := NewHandler(repo, false)

	changes := map[string]any{"status": map[string]string{"from": "draft", "to": "active"}}
	evt := event.Event{AggregateID: "pol-1", AggregateType: "Policy", Type: "policy.activated", Payload: map[string]any{"changes": changes}}

	require.NoError(t, h.Invoke(context.Background(), evt))
	assert.Equal(t, "activate", captured.Action)
	assert.Equal(t, changes, captured.Changes)
}

func TestInvoke_SimulatedFailureFailsFirstTwoThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	h := NewHandler(repo, true)
	evt := event.Event{AggregateID: "act-1", AggregateType: "Action", Type: "action.created", Payload: map[string]any{}}

	assert.Error(t, h.Invoke(context.Background(), evt))
	assert.Error(t, h.Invoke(context.Background(), evt))
	assert.NoError(t, h.Invoke(context.Background(), evt))
}

func TestInvoke_SimulatedFailureIsKeyedPerAggregateAndEventType(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mongoaudit.NewMockRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	h := NewHandler(repo, true)

	assert.Error(t, h.Invoke(context.Background(), event.Event{AggregateID: "act-1", Type: "action.created", Payload: map[string]any{}}))
	assert.Error(t, h.Invoke(context.Background(), event.Event{AggregateID: "act-2", Type: "action.created", Payload: map[string]any{}}))
}
