package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuditMongoDBModel_RoundTrip(t *testing.T) {
	now := time.Now().UTC()
	r := Record{
		AggregateID:   "act-1",
		AggregateType: "Action",
		EventType:     "action.created",
		Action:        "create",
		AfterSnapshot: map[string]any{"status": "active"},
		Changes:       map[string]any{"status": map[string]string{"from": "", "to": "active"}},
		RecordedAt:    now,
	}

	var model AuditMongoDBModel
	model.FromEntity(r)

	restored := model.ToEntity()

	assert.Equal(t, r.AggregateID, restored.AggregateID)
	assert.Equal(t, r.EventType, restored.EventType)
	assert.Equal(t, r.Action, restored.Action)
	assert.Equal(t, r.AfterSnapshot, restored.AfterSnapshot)
	assert.Equal(t, r.Changes, restored.Changes)
}
