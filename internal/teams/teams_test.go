package teams

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"taskflow/internal/blob"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/identity"
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

func (r *recordingNotifier) ofType(kind models.NotificationType) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	store *storage.Storage
	notes *recordingNotifier
	users map[string]string
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	store := storage.NewStorage()
	users := map[string]string{}
	for _, name := range names {
		u := &models.User{Username: name, Email: name + "@example.com"}
		require.NoError(t, store.CreateUser(context.Background(), u))
		users[name] = u.ID
	}
	notes := &recordingNotifier{}
	resolver := identity.NewService(store, identity.NewTokenService("test-secret", time.Minute, time.Hour))
	return &fixture{
		svc:   NewService(store, resolver, notes, nil),
		store: store,
		notes: notes,
		users: users,
	}
}

func (f *fixture) team(t *testing.T, manager string, members ...string) *models.Team {
	t.Helper()
	ctx := context.Background()
	team, err := f.svc.CreateTeam(ctx, f.users[manager], models.CreateTeamRequest{Name: "Platform"})
	require.NoError(t, err)
	for _, m := range members {
		_, _, err := f.svc.AddMember(ctx, team.ID, f.users[manager], m)
		require.NoError(t, err)
	}
	team, err = f.store.GetTeamByID(ctx, team.ID)
	require.NoError(t, err)
	return team
}

func TestCreateTeamPromotesFirstTimeManager(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	user, err := f.store.GetUserByID(ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	team, err := f.svc.CreateTeam(ctx, f.users["alice"], models.CreateTeamRequest{Name: "Core", Bio: "backend"})
	require.NoError(t, err)
	assert.Equal(t, f.users["alice"], team.ManagerID)
	assert.Empty(t, team.Members)

	user, err = f.store.GetUserByID(ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)

	_, err = f.svc.CreateTeam(ctx, f.users["alice"], models.CreateTeamRequest{Name: "Second"})
	require.NoError(t, err)
	managed, err := f.store.ListTeamsByManager(ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Len(t, managed, 2)
}

type failingRoleStore struct {
	*storage.Storage
}

func (failingRoleStore) SetUserRole(context.Context, string, models.Role) error {
	return assert.AnError
}

func TestCreateTeamRollsBackOnPromotionFailure(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	alice := f.users["alice"]

	broken := NewService(failingRoleStore{f.store}, nil, nil, nil)
	_, err := broken.CreateTeam(ctx, alice, models.CreateTeamRequest{Name: "Core"})
	require.ErrorIs(t, err, assert.AnError)

	managed, err := f.store.ListTeamsByManager(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, managed)

	team, err := f.svc.CreateTeam(ctx, alice, models.CreateTeamRequest{Name: "Core"})
	require.NoError(t, err)
	user, err := f.store.GetUserByID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)

	managed, err = f.store.ListTeamsByManager(ctx, alice)
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, team.ID, managed[0].ID)
}

func TestCreateTeamPromotesExistingManagerWithoutRole(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	alice := f.users["alice"]

	require.NoError(t, f.store.CreateTeam(ctx, &models.Team{Name: "Legacy", ManagerID: alice}))

	_, err := f.svc.CreateTeam(ctx, alice, models.CreateTeamRequest{Name: "Core"})
	require.NoError(t, err)
	user, err := f.store.GetUserByID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
}

func TestCreateTeamValidation(t *testing.T) {
	f := newFixture(t, "alice")

	_, err := f.svc.CreateTeam(context.Background(), f.users["alice"], models.CreateTeamRequest{})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.CreateTeam(context.Background(), "missing", models.CreateTeamRequest{Name: "x"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAddMember(t *testing.T) {
	tests := []struct {
		name       string
		actor      string
		identifier func(f *fixture) string
		want       struct {
			kind    errors.Kind
			members int
		}
	}{
		{
			name:       "by username",
			actor:      "alice",
			identifier: func(*fixture) string { return "bob" },
			want: struct {
				kind    errors.Kind
				members int
			}{kind: errors.KindInternal, members: 1},
		},
		{
			name:       "by id",
			actor:      "alice",
			identifier: func(f *fixture) string { return f.users["bob"] },
			want: struct {
				kind    errors.Kind
				members int
			}{kind: errors.KindInternal, members: 1},
		},
		{
			name:       "unknown user",
			actor:      "alice",
			identifier: func(*fixture) string { return "nobody" },
			want: struct {
				kind    errors.Kind
				members int
			}{kind: errors.KindNotFound},
		},
		{
			name:       "manager cannot join own team",
			actor:      "alice",
			identifier: func(*fixture) string { return "alice" },
			want: struct {
				kind    errors.Kind
				members int
			}{kind: errors.KindValidation},
		},
		{
			name:       "non manager",
			actor:      "bob",
			identifier: func(*fixture) string { return "carol" },
			want: struct {
				kind    errors.Kind
				members int
			}{kind: errors.KindAccessDenied},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "alice", "bob", "carol")
			team := f.team(t, "alice")

			got, user, err := f.svc.AddMember(context.Background(), team.ID, f.users[tt.actor], tt.identifier(f))
			if tt.want.kind != errors.KindInternal {
				require.Error(t, err)
				assert.Equal(t, tt.want.kind, errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.users["bob"], user.ID)
			assert.Len(t, got.Members, tt.want.members)
			assert.Len(t, f.notes.ofType(models.NotifyMemberAdded), 1)
		})
	}
}

func TestAddMemberTwiceIsNoop(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	team := f.team(t, "alice", "bob")

	got, _, err := f.svc.AddMember(context.Background(), team.ID, f.users["alice"], "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{f.users["bob"]}, got.Members)
	assert.Len(t, f.notes.ofType(models.NotifyMemberAdded), 1)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	team := f.team(t, "alice", "bob")

	_, _, err := f.svc.RemoveMember(ctx, team.ID, f.users["bob"], "bob")
	assert.ErrorIs(t, err, errors.ErrAccessDenied)

	_, _, err = f.svc.RemoveMember(ctx, team.ID, f.users["alice"], "carol")
	assert.ErrorIs(t, err, errors.ErrValidation)

	got, user, err := f.svc.RemoveMember(ctx, team.ID, f.users["alice"], "bob")
	require.NoError(t, err)
	assert.Equal(t, f.users["bob"], user.ID)
	assert.Empty(t, got.Members)
}

func TestGetTeamAndListMyTeams(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	team := f.team(t, "alice", "bob")

	for _, name := range []string{"alice", "bob"} {
		got, err := f.svc.GetTeam(ctx, team.ID, f.users[name])
		require.NoError(t, err, name)
		assert.Equal(t, team.ID, got.ID)
	}
	_, err := f.svc.GetTeam(ctx, team.ID, f.users["carol"])
	assert.ErrorIs(t, err, errors.ErrAccessDenied)

	_, err = f.svc.GetTeam(ctx, "missing", f.users["alice"])
	assert.True(t, errors.Is(err, errors.ErrTeamNotFound))

	mine, err := f.svc.ListMyTeams(ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Len(t, mine.Managed, 1)
	assert.Empty(t, mine.MemberOf)

	mine, err = f.svc.ListMyTeams(ctx, f.users["bob"])
	require.NoError(t, err)
	assert.Empty(t, mine.Managed)
	assert.Len(t, mine.MemberOf, 1)
}

func TestUpdateTeam(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	team := f.team(t, "alice", "bob")

	name, bio, empty := "Infra", "on call", ""

	_, err := f.svc.UpdateTeam(ctx, team.ID, f.users["bob"], models.UpdateTeamRequest{Name: &name})
	assert.ErrorIs(t, err, errors.ErrAccessDenied)

	_, err = f.svc.UpdateTeam(ctx, team.ID, f.users["alice"], models.UpdateTeamRequest{Name: &empty})
	assert.ErrorIs(t, err, errors.ErrValidation)

	got, err := f.svc.UpdateTeam(ctx, team.ID, f.users["alice"], models.UpdateTeamRequest{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Infra", got.Name)
	assert.Equal(t, "on call", got.Bio)
	assert.Equal(t, []string{f.users["bob"]}, got.Members)
}

func TestDeleteTeamCascadesTasks(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	team := f.team(t, "alice", "bob")

	teamID, manager := team.ID, f.users["alice"]
	task := &models.Task{Title: "team work", UserID: f.users["bob"], AssignedBy: &manager, TeamID: &teamID}
	require.NoError(t, f.store.CreateTask(ctx, task))
	personal := &models.Task{Title: "mine", UserID: f.users["bob"]}
	require.NoError(t, f.store.CreateTask(ctx, personal))

	err := f.svc.DeleteTeam(ctx, team.ID, f.users["bob"])
	assert.ErrorIs(t, err, errors.ErrAccessDenied)

	require.NoError(t, f.svc.DeleteTeam(ctx, team.ID, f.users["alice"]))

	_, err = f.store.GetTeamByID(ctx, team.ID)
	assert.True(t, errors.Is(err, errors.ErrTeamNotFound))
	_, err = f.store.GetTaskByID(ctx, task.ID)
	assert.True(t, errors.Is(err, errors.ErrTaskNotFound))
	_, err = f.store.GetTaskByID(ctx, personal.ID)
	assert.NoError(t, err)
}

func TestDeleteTeamRemovesAttachmentFiles(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	dir := t.TempDir()
	blobs, err := blob.NewLocal(dir)
	require.NoError(t, err)
	team := f.team(t, "alice", "bob")
	f.svc = NewService(f.store, nil, nil, blobs)
	teamID, manager := team.ID, f.users["alice"]

	attach := func(task *models.Task, name string) string {
		t.Helper()
		require.NoError(t, f.store.CreateTask(ctx, task))
		key, size, err := blobs.Put(ctx, name, strings.NewReader("contents of "+name))
		require.NoError(t, err)
		_, err = f.store.AddAttachment(ctx, task.ID, models.Attachment{
			FileName:   name,
			Size:       size,
			StorageKey: key,
			UploadedBy: f.users["bob"],
		})
		require.NoError(t, err)
		return key
	}
	attach(&models.Task{Title: "team work", UserID: f.users["bob"], AssignedBy: &manager, TeamID: &teamID}, "a.txt")
	kept := attach(&models.Task{Title: "mine", UserID: f.users["bob"]}, "b.txt")

	require.NoError(t, f.svc.DeleteTeam(ctx, team.ID, manager))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, kept, entries[0].Name())
}
