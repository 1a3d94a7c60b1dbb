// Package db is the PostgreSQL store. Its method set mirrors the
// in-memory store so either can back the services.
package db

import (
	"context"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const queryTimeout = 15 * time.Second

// Postgres error codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.WithError(err).Error("[ERROR] failed to configure database pool")
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.WithError(err).Error("[ERROR] failed to connect to database")
		return nil, err
	}
	log.Info("[SUCCESS] database connection established")
	return &Storage{pool: pool, now: time.Now}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	s.pool.Close()
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

func (s *Storage) stamp() time.Time {
	return s.now().UTC()
}

// validID reports whether id can name a row. Anything that is not a UUID
// cannot exist and is reported as not found without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// queryFailed logs a database failure and wraps it as an internal error.
func queryFailed(op string, err error) error {
	log.WithError(err).WithField("op", op).Error("[ERROR] database query failed")
	return errors.Internal("Database error", err)
}

// txFailed passes domain errors raised inside a transaction through and
// wraps everything else.
func txFailed(op string, err error) error {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return queryFailed(op, err)
}

// Users

const userColumns = `id, username, email, password_hash, role, refresh_token, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.RefreshToken, &u.CreatedAt)
	return u, err
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user.ID = newID(user.ID)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.stamp()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.RefreshToken, user.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return errors.ErrUserAlreadyExists
		}
		return queryFailed("create user", err)
	}
	log.WithField("user_id", user.ID).Debug("[store] user created")
	return nil
}

func (s *Storage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, queryFailed("get user", err)
	}
	return user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, "id = $1", id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	if !validID(user.ID) {
		return errors.ErrUserNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx,
		`UPDATE users SET username = $2, email = $3, password_hash = $4, role = $5, refresh_token = $6 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.RefreshToken)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return errors.ErrUserAlreadyExists
		}
		return queryFailed("update user", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *Storage) SetUserRole(ctx context.Context, id string, role models.Role) error {
	if !validID(id) {
		return errors.ErrUserNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return queryFailed("set user role", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}
