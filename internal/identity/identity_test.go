package identity

import (
	"context"
	"testing"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	storage "taskflow/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	svc := NewService(storage.NewStorage(), NewTokenService("test-secret", 15*time.Minute, 24*time.Hour))
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		request models.RegisterRequest
		setup   func(*Service)
		want    struct {
			kind errors.Kind
			ok   bool
		}
	}{
		{
			name:    "successful registration",
			request: models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"},
			setup:   func(*Service) {},
			want: struct {
				kind errors.Kind
				ok   bool
			}{ok: true},
		},
		{
			name:    "duplicate username",
			request: models.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"},
			setup: func(s *Service) {
				_, err := s.Register(context.Background(), models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
				require.NoError(t, err)
			},
			want: struct {
				kind errors.Kind
				ok   bool
			}{kind: errors.KindConflict},
		},
		{
			name:    "duplicate email",
			request: models.RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "secret1"},
			setup: func(s *Service) {
				_, err := s.Register(context.Background(), models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
				require.NoError(t, err)
			},
			want: struct {
				kind errors.Kind
				ok   bool
			}{kind: errors.KindConflict},
		},
		{
			name:    "invalid input",
			request: models.RegisterRequest{Username: "a", Email: "bad", Password: "1"},
			setup:   func(*Service) {},
			want: struct {
				kind errors.Kind
				ok   bool
			}{kind: errors.KindValidation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			tt.setup(svc)

			user, err := svc.Register(context.Background(), tt.request)
			if tt.want.ok {
				require.NoError(t, err)
				assert.NotEmpty(t, user.ID)
				assert.Equal(t, models.RoleUser, user.Role)
				assert.NotEqual(t, tt.request.Password, user.PasswordHash)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want.kind, errors.KindOf(err))
		})
	}
}

type failingLookupStore struct {
	*storage.Storage
}

func (failingLookupStore) GetUserByUsername(context.Context, string) (*models.User, error) {
	return nil, errors.Internal("Database error", assert.AnError)
}

func TestRegisterSurfacesLookupFailure(t *testing.T) {
	store := storage.NewStorage()
	svc := NewService(failingLookupStore{store}, NewTokenService("test-secret", time.Minute, time.Hour))
	svc.cost = bcrypt.MinCost

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))

	_, err = store.GetUserByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "nobody", Password: "secret1"})
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))

	session, err := svc.Login(ctx, models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)

	claims, err := svc.Tokens().ParseAccess(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	_, err = svc.Tokens().ParseAccess(session.RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken), "refresh token must not pass as access token")

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)

	if rotated.RefreshToken != session.RefreshToken {
		_, err = svc.Refresh(ctx, session.RefreshToken)
		assert.True(t, errors.Is(err, errors.ErrInvalidToken), "superseded refresh token must be rejected")
	}

	require.NoError(t, svc.Logout(ctx, session.User.ID))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestTokenExpiry(t *testing.T) {
	ts := NewTokenService("secret", time.Minute, time.Hour)
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issuedAt }

	access, _, err := ts.Issue("u1")
	require.NoError(t, err)

	_, err = ts.ParseAccess(access)
	require.NoError(t, err)

	ts.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = ts.ParseAccess(access)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))

	other := NewTokenService("other-secret", time.Minute, time.Hour)
	other.now = func() time.Time { return issuedAt }
	_, err = other.ParseAccess(access)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	alice, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, models.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{Email: "alice@corp.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice@corp.example.com", updated.Email)

	_, err = svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{Username: "bob"})
	assert.ErrorIs(t, err, errors.ErrConflict)

	_, err = svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{Password: "newsecret"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, models.LoginRequest{Username: "alice", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestResolveUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	alice, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		identifier string
		wantID     string
		wantKind   errors.Kind
	}{
		{name: "by id", identifier: alice.ID, wantID: alice.ID},
		{name: "by username", identifier: "alice", wantID: alice.ID},
		{name: "unknown uuid falls back to username and misses", identifier: "8d3c1c0e-7f0e-4c59-9d2a-2f7f8d1c1a11", wantKind: errors.KindNotFound},
		{name: "unknown username", identifier: "nobody", wantKind: errors.KindNotFound},
		{name: "empty identifier", identifier: "", wantKind: errors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.ResolveUser(ctx, tt.identifier)
			if tt.wantID != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, user.ID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errors.KindOf(err))
		})
	}
}
