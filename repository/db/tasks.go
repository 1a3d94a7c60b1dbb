package db

import (
	"context"
	"slices"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const taskColumns = `id, title, description, priority, status, deadline, user_id, assigned_by, team_id,
	time_spent, urgent_before_minutes, attachments, submission_note, review_note, created_at, updated_at`

func scanTask(row pgx.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.Deadline, &t.UserID,
		&t.AssignedBy, &t.TeamID, &t.TimeSpent, &t.UrgentBeforeMinutes, (*storedAttachments)(&t.Attachments),
		&t.SubmissionNote, &t.ReviewNote, &t.CreatedAt, &t.UpdatedAt)
	if t.Attachments == nil {
		t.Attachments = []models.Attachment{}
	}
	return t, err
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Task, error) {
		return scanTask(row)
	})
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	task.ID = newID(task.ID)
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.stamp()
	}
	task.UpdatedAt = task.CreatedAt
	if task.Attachments == nil {
		task.Attachments = []models.Attachment{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		task.ID, task.Title, task.Description, task.Priority, task.Status, task.Deadline, task.UserID,
		task.AssignedBy, task.TeamID, task.TimeSpent, task.UrgentBeforeMinutes, storedAttachments(task.Attachments),
		task.SubmissionNote, task.ReviewNote, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errors.NotFound("Referenced user or team not found")
		}
		return queryFailed("create task", err)
	}
	log.WithField("task_id", task.ID).Debug("[store] task created")
	return nil
}

func (s *Storage) getTask(ctx context.Context, q querier, id string, lock bool) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	task, err := scanTask(q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, queryFailed("get task", err)
	}
	return &task, nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	if !validID(id) {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return s.getTask(ctx, s.pool, id, false)
}

// casMiss explains why a conditional update on a task matched no row.
func (s *Storage) casMiss(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return queryFailed("check task", err)
	}
	if !exists {
		return errors.ErrTaskNotFound
	}
	return errors.ErrStatusConflict
}

// UpdateTask writes the editable fields of task while the stored status
// still equals expected. TimeSpent and attachments are never touched.
func (s *Storage) UpdateTask(ctx context.Context, task *models.Task, expected models.TaskStatus) error {
	if !validID(task.ID) {
		return errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updated, err := scanTask(s.pool.QueryRow(ctx,
		`UPDATE tasks SET title = $3, description = $4, priority = $5, status = $6, deadline = $7,
			urgent_before_minutes = $8, updated_at = $9
		WHERE id = $1 AND status = $2
		RETURNING `+taskColumns,
		task.ID, expected, task.Title, task.Description, task.Priority, task.Status, task.Deadline,
		task.UrgentBeforeMinutes, s.stamp()))
	if err != nil {
		if isNoRows(err) {
			return s.casMiss(ctx, task.ID)
		}
		return queryFailed("update task", err)
	}
	*task = updated
	return nil
}

func (s *Storage) TransitionStatus(ctx context.Context, id string, tr models.Transition) (*models.Task, error) {
	if !validID(id) {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	task, err := scanTask(s.pool.QueryRow(ctx,
		`UPDATE tasks SET status = $3,
			submission_note = COALESCE($4, submission_note),
			review_note = COALESCE($5, review_note),
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING `+taskColumns,
		id, tr.From, tr.To, tr.SubmissionNote, tr.ReviewNote, s.stamp()))
	if err != nil {
		if isNoRows(err) {
			return nil, s.casMiss(ctx, id)
		}
		return nil, queryFailed("transition task", err)
	}
	log.WithFields(log.Fields{"task_id": id, "from": tr.From, "to": tr.To}).Debug("[store] task status changed")
	return &task, nil
}

// DeleteTask removes the task; comments go with it, time logs stay.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	if !validID(id) {
		return errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return queryFailed("delete task", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	return nil
}

func (s *Storage) listTasks(ctx context.Context, where, id string) ([]models.Task, error) {
	if !validID(id) {
		return []models.Task{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE `+where+` ORDER BY created_at DESC, id`, id)
	if err != nil {
		return nil, queryFailed("list tasks", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, queryFailed("scan tasks", err)
	}
	return tasks, nil
}

func (s *Storage) ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	return s.listTasks(ctx, "user_id = $1", userID)
}

func (s *Storage) ListTasksByTeam(ctx context.Context, teamID string) ([]models.Task, error) {
	return s.listTasks(ctx, "team_id = $1", teamID)
}

func (s *Storage) ListTasksAssignedBy(ctx context.Context, assignerID string) ([]models.Task, error) {
	return s.listTasks(ctx, "assigned_by = $1", assignerID)
}

// RecordTime appends entry and adds its duration to the task's TimeSpent
// in one transaction. The increment happens in SQL so concurrent calls
// never lose minutes.
func (s *Storage) RecordTime(ctx context.Context, entry *models.TimeLog) (*models.Task, error) {
	if !validID(entry.TaskID) {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	entry.ID = newID(entry.ID)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.stamp()
	}

	var task models.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		task, err = scanTask(tx.QueryRow(ctx,
			`UPDATE tasks SET time_spent = time_spent + $2, updated_at = $3 WHERE id = $1 RETURNING `+taskColumns,
			entry.TaskID, entry.Duration, s.stamp()))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO time_logs (id, task_id, user_id, duration, note, start_time, end_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, entry.TaskID, entry.UserID, entry.Duration, entry.Note, entry.StartTime, entry.EndTime, entry.CreatedAt)
		return err
	})
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, queryFailed("record time", err)
	}
	return &task, nil
}

func (s *Storage) ListTimeLogs(ctx context.Context, taskID string) ([]models.TimeLog, error) {
	if !validID(taskID) {
		return []models.TimeLog{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, user_id, duration, note, start_time, end_time, created_at
		FROM time_logs WHERE task_id = $1 ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, queryFailed("list time logs", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TimeLog, error) {
		var l models.TimeLog
		err := row.Scan(&l.ID, &l.TaskID, &l.UserID, &l.Duration, &l.Note, &l.StartTime, &l.EndTime, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, queryFailed("scan time logs", err)
	}
	return logs, nil
}

func (s *Storage) AddAttachment(ctx context.Context, taskID string, att models.Attachment) (*models.Task, error) {
	if !validID(taskID) {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	att.ID = newID(att.ID)
	if att.UploadedAt.IsZero() {
		att.UploadedAt = s.stamp()
	}
	task, err := scanTask(s.pool.QueryRow(ctx,
		`UPDATE tasks SET attachments = attachments || $2::jsonb, updated_at = $3 WHERE id = $1 RETURNING `+taskColumns,
		taskID, storedAttachments{att}, s.stamp()))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, queryFailed("add attachment", err)
	}
	return &task, nil
}

func (s *Storage) RemoveAttachment(ctx context.Context, taskID, attachmentID string) (*models.Attachment, error) {
	if !validID(taskID) {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var removed models.Attachment
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		task, err := s.getTask(ctx, tx, taskID, true)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(task.Attachments, func(a models.Attachment) bool { return a.ID == attachmentID })
		if idx < 0 {
			return errors.ErrAttachmentNotFound
		}
		removed = task.Attachments[idx]
		remaining := slices.Delete(task.Attachments, idx, idx+1)
		_, err = tx.Exec(ctx, `UPDATE tasks SET attachments = $2, updated_at = $3 WHERE id = $1`,
			taskID, storedAttachments(remaining), s.stamp())
		return err
	})
	if err != nil {
		return nil, txFailed("remove attachment", err)
	}
	return &removed, nil
}
