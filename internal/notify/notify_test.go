package notify

import (
	"context"
	"fmt"
	"testing"

	"taskflow/internal/domain/models"
	storage "taskflow/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestEmitStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage()
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

	svc := NewService(store, pub)
	svc.Emit(ctx, models.Notification{RecipientID: "u1", Type: models.NotifyTaskAssigned, Message: "hi", IsUrgent: true})

	list, err := svc.List(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsUrgent)
	assert.NotEmpty(t, list[0].ID)
	pub.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage()
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(fmt.Errorf("redis down"))

	svc := NewService(store, pub)
	assert.NotPanics(t, func() {
		svc.Emit(ctx, models.Notification{RecipientID: "u1", Type: models.NotifyLeaveRequest})
	})

	list, err := svc.List(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEmitWithoutRecipientIsDropped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage()
	svc := NewService(store, nil)

	svc.Emit(ctx, models.Notification{Type: models.NotifyLeaveRequest})

	list, err := svc.List(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage()
	svc := NewService(store, nil)

	svc.Emit(ctx, models.Notification{RecipientID: "u1", Type: models.NotifyTaskAssigned})
	svc.Emit(ctx, models.Notification{RecipientID: "u1", Type: models.NotifyTaskApproved})

	list, err := svc.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, svc.MarkRead(ctx, list[0].ID, "u1"))
	assert.Error(t, svc.MarkRead(ctx, list[1].ID, "someone-else"))

	unread, err := svc.List(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	n, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "notifications:abc", Channel("abc"))
}
