package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/outbox"
	"github.com/meridianhq/eventcore/internal/adapters/rabbitmq"
	"github.com/meridianhq/eventcore/pkg/mretry"
)

func TestNewDispatcher_PanicsOnNilLogger(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockOutbox := outbox.NewMockRepository(ctrl)
	mockProducer := rabbitmq.NewMockProducerRepository(ctrl)

	assert.Panics(t, func() {
		NewDispatcher(nil, mockOutbox, mockProducer, 5, 100, time.Second)
	})
}

func TestNewDispatcher_PanicsOnNilOutboxRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProducer := rabbitmq.NewMockProducerRepository(ctrl)

	assert.Panics(t, func() {
		NewDispatcher(&libLog.NoneLogger{}, nil, mockProducer, 5, 100, time.Second)
	})
}

func TestNewDispatcher_PanicsOnNilProducer(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockOutbox := outbox.NewMockRepository(ctrl)

	assert.Panics(t, func() {
		NewDispatcher(&libLog.NoneLogger{}, mockOutbox, nil, 5, 100, time.Second)
	})
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *outbox.MockRepository, *rabbitmq.MockProducerRepository) {
	ctrl := gomock.NewController(t)
	mockOutbox := outbox.NewMockRepository(ctrl)
	mockProducer := rabbitmq.NewMockProducerRepository(ctrl)

	d := NewDispatcher(&libLog.NoneLogger{}, mockOutbox, mockProducer, 5, 100, time.Second)

	return d, mockOutbox, mockProducer
}

func TestNewDispatcher_DefaultsWhenZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockOutbox := outbox.NewMockRepository(ctrl)
	mockProducer := rabbitmq.NewMockProducerRepository(ctrl)

	d := NewDispatcher(&libLog.NoneLogger{}, mockOutbox, mockProducer, 0, 0, 0)

	assert.Equal(t, defaultMaxWorkers, d.maxWorkers)
	assert.Equal(t, defaultBatchSize, d.batchSize)
	assert.Equal(t, defaultPollInterval, d.pollInterval)
}

func TestCalculateBackoff_ZeroAttemptIsInitialBackoff(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	assert.Equal(t, mretry.DefaultInitialBackoff, d.calculateBackoff(0))
}

func TestHandleProcessingError_DLQRouting(t *testing.T) {
	d, mockOutbox, _ := newTestDispatcher(t)

	entryID := uuid.New()
	entry := &outbox.MetadataOutbox{
		ID:         entryID,
		EntityID:   "act-1",
		EntityType: outbox.EntityTypeAction,
		Metadata:   map[string]any{"key": "value"},
		Status:     outbox.StatusProcessing,
		RetryCount: 9,
		MaxRetries: 10,
	}

	mockOutbox.EXPECT().
		MarkDLQ(gomock.Any(), entryID.String(), gomock.Any()).
		Return(nil).
		Times(1)

	d.handleProcessingError(context.Background(), entry, errors.New("simulated processing failure"))
}

func TestHandleProcessingError_MarkFailedWhenRetriesRemain(t *testing.T) {
	d, mockOutbox, _ := newTestDispatcher(t)

	entryID := uuid.New()
	entry := &outbox.MetadataOutbox{
		ID:         entryID,
		EntityID:   "act-1",
		EntityType: outbox.EntityTypeAction,
		Metadata:   map[string]any{"key": "value"},
		Status:     outbox.StatusProcessing,
		RetryCount: 5,
		MaxRetries: 10,
	}

	mockOutbox.EXPECT().
		MarkFailed(gomock.Any(), entryID.String(), gomock.Any(), gomock.Any()).
		Return(nil).
		Times(1)

	d.handleProcessingError(context.Background(), entry, errors.New("simulated processing failure"))
}

func TestTick_NoEntriesDoesNotPublish(t *testing.T) {
	d, mockOutbox, mockProducer := newTestDispatcher(t)

	mockOutbox.EXPECT().ClaimBatch(gomock.Any(), d.batchSize).Return(nil, nil)
	mockProducer.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	assert.NoError(t, d.tick(context.Background()))
}

func TestTick_PublishesAndMarksClaimedEntries(t *testing.T) {
	d, mockOutbox, mockProducer := newTestDispatcher(t)

	entryID := uuid.New()
	entry := &outbox.MetadataOutbox{
		ID:         entryID,
		EntityID:   "act-1",
		EntityType: outbox.EntityTypeAction,
		EventType:  "action.created",
		Metadata:   map[string]any{"key": "value"},
		Status:     outbox.StatusProcessing,
		MaxRetries: 10,
	}

	mockOutbox.EXPECT().ClaimBatch(gomock.Any(), d.batchSize).Return([]*outbox.MetadataOutbox{entry}, nil)
	mockProducer.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mockOutbox.EXPECT().MarkPublished(gomock.Any(), entryID.String()).Return(nil)

	assert.NoError(t, d.tick(context.Background()))
}

func TestTick_SkipsWhenAlreadyTicking(t *testing.T) {
	d, mockOutbox, _ := newTestDispatcher(t)

	d.ticking.Store(true)

	mockOutbox.EXPECT().ClaimBatch(gomock.Any(), gomock.Any()).Times(0)

	assert.NoError(t, d.tick(context.Background()))
}

func TestTrigger_RunsOneTickImmediately(t *testing.T) {
	d, mockOutbox, mockProducer := newTestDispatcher(t)

	mockOutbox.EXPECT().ClaimBatch(gomock.Any(), d.batchSize).Return(nil, nil)
	mockProducer.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	assert.NoError(t, d.Trigger(context.Background()))
}

func TestTrigger_SkipsWhenATickIsAlreadyRunning(t *testing.T) {
	d, mockOutbox, _ := newTestDispatcher(t)

	d.ticking.Store(true)

	mockOutbox.EXPECT().ClaimBatch(gomock.Any(), gomock.Any()).Times(0)

	assert.NoError(t, d.Trigger(context.Background()))
}
