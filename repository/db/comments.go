package db

import (
	"context"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

const commentColumns = `id, task_id, user_id, content, created_at, updated_at`

func scanComment(row pgx.Row) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Storage) CreateComment(ctx context.Context, c *models.Comment) error {
	if !validID(c.TaskID) {
		return errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.stamp()
	}
	c.UpdatedAt = c.CreatedAt
	_, err := s.pool.Exec(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errors.ErrTaskNotFound
		}
		return queryFailed("create comment", err)
	}
	return nil
}

func (s *Storage) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	if !validID(id) {
		return nil, errors.ErrCommentNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := scanComment(s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrCommentNotFound
		}
		return nil, queryFailed("get comment", err)
	}
	return &c, nil
}

func (s *Storage) ListCommentsByTask(ctx context.Context, taskID string) ([]models.Comment, error) {
	if !validID(taskID) {
		return []models.Comment{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE task_id = $1 ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, queryFailed("list comments", err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Comment, error) {
		return scanComment(row)
	})
	if err != nil {
		return nil, queryFailed("scan comments", err)
	}
	return comments, nil
}

func (s *Storage) UpdateComment(ctx context.Context, c *models.Comment) error {
	if !validID(c.ID) {
		return errors.ErrCommentNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updated, err := scanComment(s.pool.QueryRow(ctx,
		`UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1 RETURNING `+commentColumns,
		c.ID, c.Content, s.stamp()))
	if err != nil {
		if isNoRows(err) {
			return errors.ErrCommentNotFound
		}
		return queryFailed("update comment", err)
	}
	*c = updated
	return nil
}

func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	if !validID(id) {
		return errors.ErrCommentNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return queryFailed("delete comment", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrCommentNotFound
	}
	return nil
}
