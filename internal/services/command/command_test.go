package command

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/actionrepo"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/eventstore"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/policyrepo"
	"github.com/meridianhq/eventcore/internal/domain/action"
	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/internal/domain/policy"
	"github.com/meridianhq/eventcore/pkg/errors"
)

func TestCreateAction_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, *sql.Tx, eventstore.PersistEvents) error) error {
			return fn(ctx, nil, func(context.Context, []event.Event) error { return nil })
		},
	)
	actionRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := NewService(store, actionRepo, policyRepo)

	a, err := svc.CreateAction(context.Background(), "send-email")
	require.NoError(t, err)
	assert.Equal(t, "send-email", a.Name)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, action.StatusActive, a.Status)
}

func TestCreateAction_BlankNameRejectedWithoutTouchingStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	svc := NewService(store, actionRepo, policyRepo)

	_, err := svc.CreateAction(context.Background(), "   ")
	require.Error(t, err)

	var e *errors.Err
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindValidation, e.Kind)
}

func TestUpdateAction_PropagatesOptimisticLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 3}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	svc := NewService(store, actionRepo, policyRepo)

	_, err := svc.UpdateAction(context.Background(), "act-1", 2, "send-sms")
	require.Error(t, err)

	var e *errors.Err
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindOptimisticLock, e.Kind)
}

func TestUpdateAction_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 1}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, *sql.Tx, eventstore.PersistEvents) error) error {
			return fn(ctx, nil, func(context.Context, []event.Event) error { return nil })
		},
	)
	actionRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := NewService(store, actionRepo, policyRepo)

	next, err := svc.UpdateAction(context.Background(), "act-1", 1, "send-sms")
	require.NoError(t, err)
	assert.Equal(t, "send-sms", next.Name)
	assert.Equal(t, 2, next.Version)
}

func TestUpdateAction_NoOpDoesNotTouchStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 1}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).Times(0)
	actionRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := NewService(store, actionRepo, policyRepo)

	next, err := svc.UpdateAction(context.Background(), "act-1", 1, "send-email")
	require.NoError(t, err)
	assert.Equal(t, "send-email", next.Name)
	assert.Equal(t, 1, next.Version)
}

func TestCompleteAction_PropagatesOptimisticLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 3}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	svc := NewService(store, actionRepo, policyRepo)

	_, err := svc.CompleteAction(context.Background(), "act-1", 2)
	require.Error(t, err)

	var e *errors.Err
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindOptimisticLock, e.Kind)
}

func TestCompleteAction_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 1}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, *sql.Tx, eventstore.PersistEvents) error) error {
			return fn(ctx, nil, func(context.Context, []event.Event) error { return nil })
		},
	)
	actionRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := NewService(store, actionRepo, policyRepo)

	next, err := svc.CompleteAction(context.Background(), "act-1", 1)
	require.NoError(t, err)
	assert.Equal(t, action.StatusInactive, next.Status)
	assert.Equal(t, 2, next.Version)
}

func TestCancelAction_RequiresReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &action.Action{ID: "act-1", Name: "send-email", Status: action.StatusActive, Version: 1}
	actionRepo.EXPECT().Get(gomock.Any(), "act-1").Return(current, nil)

	svc := NewService(store, actionRepo, policyRepo)

	_, err := svc.CancelAction(context.Background(), "act-1", 1, "")
	require.Error(t, err)

	var e *errors.Err
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindValidation, e.Kind)
}

func TestCreatePolicy_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, *sql.Tx, eventstore.PersistEvents) error) error {
			return fn(ctx, nil, func(context.Context, []event.Event) error { return nil })
		},
	)
	policyRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := NewService(store, actionRepo, policyRepo)

	p, err := svc.CreatePolicy(context.Background(), "rate-limit", map[string]any{"max": 10})
	require.NoError(t, err)
	assert.Equal(t, policy.StatusDraft, p.Status)
	assert.Equal(t, 1, p.Version)
}

func TestActivatePolicy_RejectsAlreadyRevoked(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &policy.Policy{ID: "pol-1", Name: "rate-limit", Status: policy.StatusRevoked, Version: 4}
	policyRepo.EXPECT().Get(gomock.Any(), "pol-1").Return(current, nil)

	svc := NewService(store, actionRepo, policyRepo)

	_, err := svc.ActivatePolicy(context.Background(), "pol-1", 4)
	require.Error(t, err)

	var e *errors.Err
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindBusinessRule, e.Kind)
}

func TestRevokePolicy_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	actionRepo := actionrepo.NewMockRepository(ctrl)
	policyRepo := policyrepo.NewMockRepository(ctrl)

	current := &policy.Policy{ID: "pol-1", Name: "rate-limit", Status: policy.StatusActive, Version: 2}
	policyRepo.EXPECT().Get(gomock.Any(), "pol-1").Return(current, nil)

	store.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, *sql.Tx, eventstore.PersistEvents) error) error {
			return fn(ctx, nil, func(context.Context, []event.Event) error { return nil })
		},
	)
	policyRepo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := NewService(store, actionRepo, policyRepo)

	next, err := svc.RevokePolicy(context.Background(), "pol-1", 2, "fraud detected", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, policy.StatusRevoked, next.Status)
	assert.Equal(t, "admin-1", next.RevokedBy)
	assert.Equal(t, 3, next.Version)
}
