// Package comments attaches discussion threads to tasks. Whoever may see
// a task may read and write its thread; edits and deletes belong to the
// comment's author.
package comments

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
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	ListCommentsByTask(ctx context.Context, taskID string) ([]models.Comment, error)
	UpdateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

type Notifier interface {
	Emit(ctx context.Context, n models.Notification)
}

type Service struct {
	store    Store
	notifier Notifier
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// authorize loads the task and checks that actorID may discuss it.
func (s *Service) authorize(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var team *models.Team
	if task.TeamID != nil {
		team, err = s.store.GetTeamByID(ctx, *task.TeamID)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}
	if !access.CanCommentOrView(task, team, actorID) {
		return nil, errors.AccessDenied("Access denied: you cannot comment on this task")
	}
	return task, nil
}

func (s *Service) Create(ctx context.Context, taskID, actorID string, req models.CommentRequest) (*models.Comment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	task, err := s.authorize(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{TaskID: taskID, UserID: actorID, Content: req.Content}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": taskID, "comment_id": c.ID}).Debug("comment added")

	if task.UserID != actorID && s.notifier != nil {
		sender := actorID
		link := "/tasks/" + taskID
		s.notifier.Emit(ctx, models.Notification{
			RecipientID: task.UserID,
			SenderID:    &sender,
			Type:        models.NotifyCommentAdded,
			Message:     fmt.Sprintf("New comment on task %s", task.Title),
			Link:        &link,
		})
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, taskID, actorID string) ([]models.Comment, error) {
	if _, err := s.authorize(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListCommentsByTask(ctx, taskID)
}

func (s *Service) Get(ctx context.Context, id, actorID string) (*models.Comment, error) {
	c, err := s.store.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, c.TaskID, actorID); err != nil {
		return nil, err
	}
	return c, nil
}

// loadOwn loads a comment written by actorID. Authors who lost access to
// the task keep no rights over their comments.
func (s *Service) loadOwn(ctx context.Context, id, actorID string) (*models.Comment, error) {
	c, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actorID {
		return nil, errors.AccessDenied("Only the author can modify this comment")
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id, actorID string, req models.CommentRequest) (*models.Comment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	c, err := s.loadOwn(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	c.Content = req.Content
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	if _, err := s.loadOwn(ctx, id, actorID); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, id)
}
