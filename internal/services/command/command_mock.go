package command

import (
	"context"
	"database/sql"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/eventstore"
)

// MockStore is a hand-written mock of Store, matching the shape mockgen
// would generate.
type MockStore struct {
	ctrl     *gomock.Controller
	recorder *MockStoreMockRecorder
}

type MockStoreMockRecorder struct {
	mock *MockStore
}

func NewMockStore(ctrl *gomock.Controller) *MockStore {
	mock := &MockStore{ctrl: ctrl}
	mock.recorder = &MockStoreMockRecorder{mock}
	return mock
}

func (m *MockStore) EXPECT() *MockStoreMockRecorder {
	return m.recorder
}

func (m *MockStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WithTransaction", ctx, fn)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockStoreMockRecorder) WithTransaction(ctx, fn any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WithTransaction", reflect.TypeOf((*MockStore)(nil).WithTransaction), ctx, fn)
}

var _ Store = (*MockStore)(nil)
