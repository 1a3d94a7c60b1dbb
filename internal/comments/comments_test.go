package comments

import (
	"context"
	"strings"
	"sync"
	"testing"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	storage "taskflow/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Emit(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

type fixture struct {
	svc      *Service
	store    *storage.Storage
	notes    *recordingNotifier
	manager  string
	member   string
	outsider string
	teamTask string
	personal string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewStorage()

	mk := func(name string) string {
		u := &models.User{Username: name, Email: name + "@example.com"}
		require.NoError(t, store.CreateUser(ctx, u))
		return u.ID
	}
	manager, member, outsider := mk("manager"), mk("member"), mk("outsider")

	team := &models.Team{Name: "Platform", ManagerID: manager}
	require.NoError(t, store.CreateTeam(ctx, team))
	_, err := store.AddTeamMember(ctx, team.ID, member)
	require.NoError(t, err)

	teamTask := &models.Task{Title: "Ship", UserID: member, AssignedBy: &manager, TeamID: &team.ID}
	require.NoError(t, store.CreateTask(ctx, teamTask))
	personal := &models.Task{Title: "Mine", UserID: member}
	require.NoError(t, store.CreateTask(ctx, personal))

	notes := &recordingNotifier{}
	return &fixture{
		svc:      NewService(store, notes),
		store:    store,
		notes:    notes,
		manager:  manager,
		member:   member,
		outsider: outsider,
		teamTask: teamTask.ID,
		personal: personal.ID,
	}
}

func TestCreateComment(t *testing.T) {
	tests := []struct {
		name   string
		task   func(f *fixture) string
		actor  func(f *fixture) string
		body   string
		want   errors.Kind
		notify bool
	}{
		{
			name:  "owner on personal task",
			task:  func(f *fixture) string { return f.personal },
			actor: func(f *fixture) string { return f.member },
			body:  "note to self",
		},
		{
			name:   "manager on team task notifies owner",
			task:   func(f *fixture) string { return f.teamTask },
			actor:  func(f *fixture) string { return f.manager },
			body:   "looks good",
			notify: true,
		},
		{
			name:  "manager on personal task",
			task:  func(f *fixture) string { return f.personal },
			actor: func(f *fixture) string { return f.manager },
			body:  "hi",
			want:  errors.KindAccessDenied,
		},
		{
			name:  "outsider on team task",
			task:  func(f *fixture) string { return f.teamTask },
			actor: func(f *fixture) string { return f.outsider },
			body:  "hi",
			want:  errors.KindAccessDenied,
		},
		{
			name:  "missing task",
			task:  func(*fixture) string { return "missing" },
			actor: func(f *fixture) string { return f.member },
			body:  "hi",
			want:  errors.KindNotFound,
		},
		{
			name:  "empty content",
			task:  func(f *fixture) string { return f.personal },
			actor: func(f *fixture) string { return f.member },
			want:  errors.KindValidation,
		},
		{
			name:  "content too long",
			task:  func(f *fixture) string { return f.personal },
			actor: func(f *fixture) string { return f.member },
			body:  strings.Repeat("x", 1001),
			want:  errors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c, err := f.svc.Create(context.Background(), tt.task(f), tt.actor(f), models.CommentRequest{Content: tt.body})
			if tt.want != errors.KindInternal {
				require.Error(t, err)
				assert.Equal(t, tt.want, errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, c.Content)
			assert.Equal(t, tt.actor(f), c.UserID)
			if tt.notify {
				require.Len(t, f.notes.sent, 1)
				assert.Equal(t, models.NotifyCommentAdded, f.notes.sent[0].Type)
				assert.Equal(t, f.member, f.notes.sent[0].RecipientID)
			} else {
				assert.Empty(t, f.notes.sent)
			}
		})
	}
}

func TestListComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.teamTask, f.member, models.CommentRequest{Content: "first"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.teamTask, f.manager, models.CommentRequest{Content: "second"})
	require.NoError(t, err)

	got, err := f.svc.List(ctx, f.teamTask, f.manager)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)

	_, err = f.svc.List(ctx, f.teamTask, f.outsider)
	assert.ErrorIs(t, err, errors.ErrAccessDenied)
}

func TestUpdateAndDeleteByAuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.teamTask, f.member, models.CommentRequest{Content: "draft"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, c.ID, f.manager, models.CommentRequest{Content: "hijack"})
	assert.ErrorIs(t, err, errors.ErrAccessDenied)
	err = f.svc.Delete(ctx, c.ID, f.manager)
	assert.ErrorIs(t, err, errors.ErrAccessDenied)

	updated, err := f.svc.Update(ctx, c.ID, f.member, models.CommentRequest{Content: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)

	got, err := f.svc.Get(ctx, c.ID, f.manager)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Content)

	require.NoError(t, f.svc.Delete(ctx, c.ID, f.member))
	_, err = f.svc.Get(ctx, c.ID, f.member)
	assert.True(t, errors.Is(err, errors.ErrCommentNotFound))
}

func TestCommentsGoWithTheTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.personal, f.member, models.CommentRequest{Content: "bye"})
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteTask(ctx, f.personal))

	_, err = f.store.GetCommentByID(ctx, c.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
