package teams

import (
	"context"
	"fmt"

	"taskflow/internal/access"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	log "github.com/sirupsen/logrus"
)

// StatusFilterAll lists leave requests regardless of status.
const StatusFilterAll = "all"

// RequestLeave files a leave request for a member. While one is pending
// the same request is returned again; created reports whether a new one
// was made.
func (s *Service) RequestLeave(ctx context.Context, teamID, userID string) (req *models.TeamLeaveRequest, created bool, err error) {
	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, false, err
	}
	if !access.IsTeamMember(team, userID) {
		return nil, false, errors.AccessDenied("You are not a member of this team")
	}

	existing, err := s.store.FindPendingLeaveRequest(ctx, teamID, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	req = &models.TeamLeaveRequest{TeamID: teamID, UserID: userID, Status: models.LeavePending}
	if err := s.store.CreateLeaveRequest(ctx, req); err != nil {
		// Lost a race with a concurrent request from the same member.
		if errors.Is(err, errors.ErrLeavePending) {
			existing, ferr := s.store.FindPendingLeaveRequest(ctx, teamID, userID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	log.WithFields(log.Fields{"team_id": teamID, "user_id": userID, "request_id": req.ID}).Info("leave requested")

	sender := userID
	s.emit(ctx, models.Notification{
		RecipientID: team.ManagerID,
		SenderID:    &sender,
		Type:        models.NotifyLeaveRequest,
		Message:     fmt.Sprintf("A member asked to leave team %s", team.Name),
		Link:        teamLink(teamID),
		IsUrgent:    true,
	})
	return req, true, nil
}

// ParseStatusFilter maps the query value onto a store filter. Empty means
// pending; "all" maps to the empty filter.
func ParseStatusFilter(raw string) (models.LeaveStatus, error) {
	switch raw {
	case "":
		return models.LeavePending, nil
	case StatusFilterAll:
		return "", nil
	case string(models.LeavePending), string(models.LeaveApproved), string(models.LeaveRejected):
		return models.LeaveStatus(raw), nil
	default:
		return "", errors.Validation("Invalid status filter, expected one of: pending, approved, rejected, all")
	}
}

func (s *Service) LeaveRequests(ctx context.Context, teamID, managerID, status string) ([]models.TeamLeaveRequest, error) {
	filter, err := ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadManaged(ctx, teamID, managerID, "Only the team manager can view leave requests"); err != nil {
		return nil, err
	}
	return s.store.ListLeaveRequests(ctx, teamID, filter)
}

// loadDecidable loads a leave request and its team and checks that
// managerID manages that team.
func (s *Service) loadDecidable(ctx context.Context, requestID, managerID string) (*models.TeamLeaveRequest, *models.Team, error) {
	req, err := s.store.GetLeaveRequestByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	team, err := s.loadManaged(ctx, req.TeamID, managerID, "Only the team manager can decide leave requests")
	if err != nil {
		return nil, nil, err
	}
	return req, team, nil
}

// ApproveLeave removes the member from the team. Their tasks in the team
// stay with them as personal tasks.
func (s *Service) ApproveLeave(ctx context.Context, requestID, managerID string) (*models.TeamLeaveRequest, error) {
	_, team, err := s.loadDecidable(ctx, requestID, managerID)
	if err != nil {
		return nil, err
	}
	req, detached, err := s.store.ApproveLeaveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"team_id":    req.TeamID,
		"user_id":    req.UserID,
		"request_id": req.ID,
		"detached":   detached,
	}).Info("leave approved")

	sender := managerID
	s.emit(ctx, models.Notification{
		RecipientID: req.UserID,
		SenderID:    &sender,
		Type:        models.NotifyLeaveApproved,
		Message:     fmt.Sprintf("Your request to leave team %s was approved", team.Name),
	})
	return req, nil
}

func (s *Service) RejectLeave(ctx context.Context, requestID, managerID string) (*models.TeamLeaveRequest, error) {
	_, team, err := s.loadDecidable(ctx, requestID, managerID)
	if err != nil {
		return nil, err
	}
	req, err := s.store.RejectLeaveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"team_id": req.TeamID, "request_id": req.ID}).Info("leave rejected")

	sender := managerID
	s.emit(ctx, models.Notification{
		RecipientID: req.UserID,
		SenderID:    &sender,
		Type:        models.NotifyLeaveRejected,
		Message:     fmt.Sprintf("Your request to leave team %s was rejected", team.Name),
		Link:        teamLink(req.TeamID),
	})
	return req, nil
}
