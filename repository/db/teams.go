package db

import (
	"context"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const teamSelect = `SELECT t.id, t.name, t.manager_id, t.bio, t.profile_picture, t.created_at,
	COALESCE((SELECT array_agg(m.user_id::text ORDER BY m.added_at, m.user_id)
		FROM team_members m WHERE m.team_id = t.id), '{}'::text[])
	FROM teams t`

func scanTeam(row pgx.Row) (models.Team, error) {
	var t models.Team
	err := row.Scan(&t.ID, &t.Name, &t.ManagerID, &t.Bio, &t.ProfilePicture, &t.CreatedAt, &t.Members)
	if t.Members == nil {
		t.Members = []string{}
	}
	return t, err
}

func (s *Storage) CreateTeam(ctx context.Context, team *models.Team) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	team.ID = newID(team.ID)
	if team.CreatedAt.IsZero() {
		team.CreatedAt = s.stamp()
	}
	if team.Members == nil {
		team.Members = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id, name, manager_id, bio, profile_picture, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		team.ID, team.Name, team.ManagerID, team.Bio, team.ProfilePicture, team.CreatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errors.ErrUserNotFound
		}
		return queryFailed("create team", err)
	}
	log.WithField("team_id", team.ID).Debug("[store] team created")
	return nil
}

func (s *Storage) GetTeamByID(ctx context.Context, id string) (*models.Team, error) {
	if !validID(id) {
		return nil, errors.ErrTeamNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	team, err := scanTeam(s.pool.QueryRow(ctx, teamSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, errors.ErrTeamNotFound
		}
		return nil, queryFailed("get team", err)
	}
	return &team, nil
}

func (s *Storage) UpdateTeam(ctx context.Context, team *models.Team) error {
	if !validID(team.ID) {
		return errors.ErrTeamNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx,
		`UPDATE teams SET name = $2, bio = $3, profile_picture = $4 WHERE id = $1`,
		team.ID, team.Name, team.Bio, team.ProfilePicture)
	if err != nil {
		return queryFailed("update team", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTeamNotFound
	}
	return nil
}

func (s *Storage) listTeams(ctx context.Context, where string, arg any) ([]models.Team, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, teamSelect+` WHERE `+where+` ORDER BY t.created_at, t.id`, arg)
	if err != nil {
		return nil, queryFailed("list teams", err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Team, error) {
		return scanTeam(row)
	})
	if err != nil {
		return nil, queryFailed("scan teams", err)
	}
	return teams, nil
}

func (s *Storage) ListTeamsByManager(ctx context.Context, managerID string) ([]models.Team, error) {
	if !validID(managerID) {
		return []models.Team{}, nil
	}
	return s.listTeams(ctx, `t.manager_id = $1`, managerID)
}

func (s *Storage) ListTeamsByMember(ctx context.Context, userID string) ([]models.Team, error) {
	if !validID(userID) {
		return []models.Team{}, nil
	}
	return s.listTeams(ctx, `EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.user_id = $1)`, userID)
}

func teamExists(ctx context.Context, q querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// AddTeamMember reports false when userID already was a member.
func (s *Storage) AddTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	if !validID(teamID) {
		return false, errors.ErrTeamNotFound
	}
	if !validID(userID) {
		return false, errors.ErrUserNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	exists, err := teamExists(ctx, s.pool, teamID)
	if err != nil {
		return false, queryFailed("add team member", err)
	}
	if !exists {
		return false, errors.ErrTeamNotFound
	}
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, teamID, userID)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return false, errors.ErrUserNotFound
		}
		return false, queryFailed("add team member", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Storage) RemoveTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	if !validID(teamID) {
		return false, errors.ErrTeamNotFound
	}
	if !validID(userID) {
		return false, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	exists, err := teamExists(ctx, s.pool, teamID)
	if err != nil {
		return false, queryFailed("remove team member", err)
	}
	if !exists {
		return false, errors.ErrTeamNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, queryFailed("remove team member", err)
	}
	return ct.RowsAffected() == 1, nil
}

// DeleteTeam relies on ON DELETE CASCADE to take members, leave requests,
// tasks and their comments with it.
func (s *Storage) DeleteTeam(ctx context.Context, id string) error {
	if !validID(id) {
		return errors.ErrTeamNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return queryFailed("delete team", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTeamNotFound
	}
	log.WithField("team_id", id).Debug("[store] team deleted")
	return nil
}
