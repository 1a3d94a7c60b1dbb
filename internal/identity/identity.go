// Package identity is the user directory: registration, login, token
// rotation, profiles and resolving a user from an id or a username.
package identity

import (
	"context"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/validation"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type Service struct {
	store  Store
	tokens *TokenService
	cost   int
}

func NewService(store Store, tokens *TokenService) *Service {
	return &Service{store: store, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *Service) Tokens() *TokenService { return s.tokens }

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errors.Internal("Failed to hash password", err)
	}
	return string(hash), nil
}

// taken turns a uniqueness lookup into ErrUserAlreadyExists on a hit and
// nil on a miss. Store failures pass through.
func taken(existing *models.User, err error) error {
	switch {
	case err == nil && existing != nil:
		return errors.ErrUserAlreadyExists
	case err == nil, errors.Is(err, errors.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := taken(s.store.GetUserByUsername(ctx, req.Username)); err != nil {
		return nil, err
	}
	if err := taken(s.store.GetUserByEmail(ctx, req.Email)); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// issue mints a token pair and stores the refresh token so that only the
// most recent one can be rotated.
func (s *Service) issue(ctx context.Context, user *models.User) (*Session, error) {
	access, refresh, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, errors.Internal("Failed to issue tokens", err)
	}
	user.RefreshToken = refresh
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, err
	}
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, errors.ErrInvalidToken
	}
	return s.issue(ctx, user)
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.RefreshToken = ""
	return s.store.UpdateUser(ctx, user)
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		if user.PasswordHash, err = s.hash(req.Password); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveUser finds a user by identifier. An id-shaped identifier is
// looked up by id first; anything else, or an id that matches nobody, is
// tried as a username.
func (s *Service) ResolveUser(ctx context.Context, identifier string) (*models.User, error) {
	return Resolve(ctx, s.store, identifier)
}

type lookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

func Resolve(ctx context.Context, users lookup, identifier string) (*models.User, error) {
	if identifier == "" {
		return nil, errors.Validation("User identifier is required")
	}
	if _, err := uuid.Parse(identifier); err == nil {
		user, err := users.GetUserByID(ctx, identifier)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}
	return users.GetUserByUsername(ctx, identifier)
}
