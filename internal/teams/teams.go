// Package teams owns team membership, the manager role and the leave
// request approval flow.
package teams

import (
	"context"
	"fmt"

	"taskflow/internal/access"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/validation"

	log "github.com/sirupsen/logrus"
)

type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetUserRole(ctx context.Context, id string, role models.Role) error

	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	ListTeamsByManager(ctx context.Context, managerID string) ([]models.Team, error)
	ListTeamsByMember(ctx context.Context, userID string) ([]models.Team, error)
	AddTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	RemoveTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	DeleteTeam(ctx context.Context, id string) error
	ListTasksByTeam(ctx context.Context, teamID string) ([]models.Task, error)

	CreateLeaveRequest(ctx context.Context, req *models.TeamLeaveRequest) error
	FindPendingLeaveRequest(ctx context.Context, teamID, userID string) (*models.TeamLeaveRequest, error)
	GetLeaveRequestByID(ctx context.Context, id string) (*models.TeamLeaveRequest, error)
	ListLeaveRequests(ctx context.Context, teamID string, status models.LeaveStatus) ([]models.TeamLeaveRequest, error)
	ApproveLeaveRequest(ctx context.Context, id string) (*models.TeamLeaveRequest, int64, error)
	RejectLeaveRequest(ctx context.Context, id string) (*models.TeamLeaveRequest, error)
}

type UserResolver interface {
	ResolveUser(ctx context.Context, identifier string) (*models.User, error)
}

type Notifier interface {
	Emit(ctx context.Context, n models.Notification)
}

// BlobDeleter removes stored attachment bytes.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store    Store
	users    UserResolver
	notifier Notifier
	blobs    BlobDeleter
}

// NewService wires the team service. blobs may be nil when attachments
// are disabled.
func NewService(store Store, users UserResolver, notifier Notifier, blobs BlobDeleter) *Service {
	return &Service{store: store, users: users, notifier: notifier, blobs: blobs}
}

func (s *Service) emit(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Emit(ctx, n)
	}
}

func teamLink(id string) *string {
	link := "/teams/" + id
	return &link
}

// CreateTeam makes userID the manager of a new, empty team and promotes
// them to the manager role if they do not hold it yet. A failed
// promotion removes the team again.
func (s *Service) CreateTeam(ctx context.Context, userID string, req models.CreateTeamRequest) (*models.Team, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	team := &models.Team{
		Name:           req.Name,
		ManagerID:      userID,
		Members:        []string{},
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	if user.Role != models.RoleManager {
		if err := s.store.SetUserRole(ctx, userID, models.RoleManager); err != nil {
			if delErr := s.store.DeleteTeam(ctx, team.ID); delErr != nil {
				log.WithError(delErr).WithField("team_id", team.ID).Error("failed to roll back team after promotion error")
			}
			return nil, err
		}
		log.WithField("user_id", userID).Info("user promoted to manager")
	}
	log.WithFields(log.Fields{"team_id": team.ID, "manager_id": userID}).Info("team created")
	return team, nil
}

// loadManaged loads a team and checks that actorID manages it.
func (s *Service) loadManaged(ctx context.Context, teamID, actorID, denied string) (*models.Team, error) {
	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !access.IsTeamManager(team, actorID) {
		return nil, errors.AccessDenied(denied)
	}
	return team, nil
}

func (s *Service) GetTeam(ctx context.Context, teamID, actorID string) (*models.Team, error) {
	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !access.IsTeamParticipant(team, actorID) {
		return nil, errors.AccessDenied("Access denied: you are not a member of this team")
	}
	return team, nil
}

type MyTeams struct {
	Managed  []models.Team `json:"managed"`
	MemberOf []models.Team `json:"memberOf"`
}

func (s *Service) ListMyTeams(ctx context.Context, actorID string) (*MyTeams, error) {
	managed, err := s.store.ListTeamsByManager(ctx, actorID)
	if err != nil {
		return nil, err
	}
	memberOf, err := s.store.ListTeamsByMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &MyTeams{Managed: managed, MemberOf: memberOf}, nil
}

func (s *Service) UpdateTeam(ctx context.Context, teamID, actorID string, req models.UpdateTeamRequest) (*models.Team, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	team, err := s.loadManaged(ctx, teamID, actorID, "Only the team manager can update the team")
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, errors.Validation("name must not be empty")
		}
		team.Name = *req.Name
	}
	if req.Bio != nil {
		team.Bio = *req.Bio
	}
	if req.ProfilePicture != nil {
		team.ProfilePicture = *req.ProfilePicture
	}
	if err := s.store.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// DeleteTeam removes the team, its leave requests and all of its tasks
// together with their attachment files. There is no undo.
func (s *Service) DeleteTeam(ctx context.Context, teamID, actorID string) error {
	if _, err := s.loadManaged(ctx, teamID, actorID, "Only the team manager can delete the team"); err != nil {
		return err
	}
	tasks, err := s.store.ListTasksByTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	for _, task := range tasks {
		for _, att := range task.Attachments {
			s.dropBlob(ctx, att.StorageKey)
		}
	}
	log.WithFields(log.Fields{"team_id": teamID, "manager_id": actorID, "tasks": len(tasks)}).Warn("team deleted")
	return nil
}

func (s *Service) dropBlob(ctx context.Context, key string) {
	if s.blobs == nil || key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to delete attachment blob")
	}
}

// AddMember resolves identifier (id or username) and adds that user.
// Adding an existing member changes nothing.
func (s *Service) AddMember(ctx context.Context, teamID, actorID, identifier string) (*models.Team, *models.User, error) {
	team, err := s.loadManaged(ctx, teamID, actorID, "Only the team manager can add members")
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.ResolveUser(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if user.ID == team.ManagerID {
		return nil, nil, errors.Validation("The team manager cannot be added as a member")
	}

	added, err := s.store.AddTeamMember(ctx, teamID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if added {
		sender := actorID
		s.emit(ctx, models.Notification{
			RecipientID: user.ID,
			SenderID:    &sender,
			Type:        models.NotifyMemberAdded,
			Message:     fmt.Sprintf("You were added to team %s", team.Name),
			Link:        teamLink(teamID),
		})
		log.WithFields(log.Fields{"team_id": teamID, "user_id": user.ID}).Info("member added")
	}

	team, err = s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	return team, user, nil
}

func (s *Service) RemoveMember(ctx context.Context, teamID, actorID, identifier string) (*models.Team, *models.User, error) {
	if _, err := s.loadManaged(ctx, teamID, actorID, "Only the team manager can remove members"); err != nil {
		return nil, nil, err
	}
	user, err := s.users.ResolveUser(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	removed, err := s.store.RemoveTeamMember(ctx, teamID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if !removed {
		return nil, nil, errors.Validation("User is not a member of this team")
	}
	log.WithFields(log.Fields{"team_id": teamID, "user_id": user.ID}).Info("member removed")

	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	return team, user, nil
}
