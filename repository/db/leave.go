package db

import (
	"context"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const leaveColumns = `id, team_id, user_id, status, created_at`

func scanLeave(row pgx.Row) (models.TeamLeaveRequest, error) {
	var r models.TeamLeaveRequest
	err := row.Scan(&r.ID, &r.TeamID, &r.UserID, &r.Status, &r.CreatedAt)
	return r, err
}

// CreateLeaveRequest refuses a second pending request for the same team
// and user with ErrLeavePending; a partial unique index enforces this.
func (s *Storage) CreateLeaveRequest(ctx context.Context, req *models.TeamLeaveRequest) error {
	if !validID(req.TeamID) {
		return errors.ErrTeamNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	req.ID = newID(req.ID)
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.stamp()
	}
	if req.Status == "" {
		req.Status = models.LeavePending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_leave_requests (`+leaveColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.TeamID, req.UserID, req.Status, req.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return errors.ErrLeavePending
		case codeForeignKeyViolation:
			return errors.ErrTeamNotFound
		}
		return queryFailed("create leave request", err)
	}
	return nil
}

func (s *Storage) getLeave(ctx context.Context, q querier, where string, args ...any) (*models.TeamLeaveRequest, error) {
	r, err := scanLeave(q.QueryRow(ctx, `SELECT `+leaveColumns+` FROM team_leave_requests WHERE `+where, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrLeaveRequestNotFound
		}
		return nil, queryFailed("get leave request", err)
	}
	return &r, nil
}

func (s *Storage) FindPendingLeaveRequest(ctx context.Context, teamID, userID string) (*models.TeamLeaveRequest, error) {
	if !validID(teamID) || !validID(userID) {
		return nil, errors.ErrLeaveRequestNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return s.getLeave(ctx, s.pool, `team_id = $1 AND user_id = $2 AND status = 'pending'`, teamID, userID)
}

func (s *Storage) GetLeaveRequestByID(ctx context.Context, id string) (*models.TeamLeaveRequest, error) {
	if !validID(id) {
		return nil, errors.ErrLeaveRequestNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return s.getLeave(ctx, s.pool, `id = $1`, id)
}

// ListLeaveRequests filters by status; an empty status lists all.
func (s *Storage) ListLeaveRequests(ctx context.Context, teamID string, status models.LeaveStatus) ([]models.TeamLeaveRequest, error) {
	if !validID(teamID) {
		return []models.TeamLeaveRequest{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+leaveColumns+` FROM team_leave_requests
		WHERE team_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id`, teamID, string(status))
	if err != nil {
		return nil, queryFailed("list leave requests", err)
	}
	reqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TeamLeaveRequest, error) {
		return scanLeave(row)
	})
	if err != nil {
		return nil, queryFailed("scan leave requests", err)
	}
	return reqs, nil
}

// lockPending loads a leave request for update and checks it is still
// pending.
func (s *Storage) lockPending(ctx context.Context, tx pgx.Tx, id string) (*models.TeamLeaveRequest, error) {
	req, err := s.getLeave(ctx, tx, `id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.LeavePending {
		return nil, errors.ErrLeaveNotPending
	}
	return req, nil
}

// ApproveLeaveRequest marks a pending request approved, drops the user
// from the team and turns their tasks in that team into personal tasks,
// all in one transaction. It returns the number of detached tasks.
func (s *Storage) ApproveLeaveRequest(ctx context.Context, id string) (*models.TeamLeaveRequest, int64, error) {
	if !validID(id) {
		return nil, 0, errors.ErrLeaveRequestNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		req      *models.TeamLeaveRequest
		detached int64
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		req, err = s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, req.TeamID, req.UserID); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE tasks SET team_id = NULL, assigned_by = NULL, updated_at = $3
			WHERE user_id = $1 AND team_id = $2`, req.UserID, req.TeamID, s.stamp())
		if err != nil {
			return err
		}
		detached = ct.RowsAffected()
		if _, err := tx.Exec(ctx,
			`UPDATE team_leave_requests SET status = $2 WHERE id = $1`, id, models.LeaveApproved); err != nil {
			return err
		}
		req.Status = models.LeaveApproved
		return nil
	})
	if err != nil {
		return nil, 0, txFailed("approve leave request", err)
	}
	log.WithFields(log.Fields{"request_id": id, "detached": detached}).Debug("[store] leave approved")
	return req, detached, nil
}

func (s *Storage) RejectLeaveRequest(ctx context.Context, id string) (*models.TeamLeaveRequest, error) {
	if !validID(id) {
		return nil, errors.ErrLeaveRequestNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var req *models.TeamLeaveRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		req, err = s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE team_leave_requests SET status = $2 WHERE id = $1`, id, models.LeaveRejected); err != nil {
			return err
		}
		req.Status = models.LeaveRejected
		return nil
	})
	if err != nil {
		return nil, txFailed("reject leave request", err)
	}
	return req, nil
}
