// Package workflow implements the task life cycle: creation, assignment
// inside a team, edits, the submit and review cycle, deletion, time
// tracking and attachments.
//
// Every status write is a compare-and-swap against the status read at the
// start of the operation, so two racing transitions cannot both win.
package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"taskflow/internal/access"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/validation"

	log "github.com/sirupsen/logrus"
)

type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task, expected models.TaskStatus) error
	TransitionStatus(ctx context.Context, id string, tr models.Transition) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	ListTasksByTeam(ctx context.Context, teamID string) ([]models.Task, error)
	ListTasksAssignedBy(ctx context.Context, assignerID string) ([]models.Task, error)
	RecordTime(ctx context.Context, entry *models.TimeLog) (*models.Task, error)
	ListTimeLogs(ctx context.Context, taskID string) ([]models.TimeLog, error)
	AddAttachment(ctx context.Context, taskID string, att models.Attachment) (*models.Task, error)
	RemoveAttachment(ctx context.Context, taskID, attachmentID string) (*models.Attachment, error)
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
}

type Notifier interface {
	Emit(ctx context.Context, n models.Notification)
}

type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store    Store
	notifier Notifier
	blobs    BlobStore
	now      func() time.Time
}

// NewService wires the engine. blobs may be nil when attachments are
// disabled.
func NewService(store Store, notifier Notifier, blobs BlobStore) *Service {
	return &Service{store: store, notifier: notifier, blobs: blobs, now: time.Now}
}

func taskLink(id string) *string {
	link := "/tasks/" + id
	return &link
}

func (s *Service) emit(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Emit(ctx, n)
	}
}

// load fetches a task and, for team tasks, its team. A team that no
// longer exists is reported as nil.
func (s *Service) load(ctx context.Context, id string) (*models.Task, *models.Team, error) {
	task, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if task.TeamID == nil {
		return task, nil, nil
	}
	team, err := s.store.GetTeamByID(ctx, *task.TeamID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return task, nil, nil
		}
		return nil, nil, err
	}
	return task, team, nil
}

func (s *Service) loadVisible(ctx context.Context, id, actorID string) (*models.Task, *models.Team, error) {
	task, team, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := access.CanViewTaskOrErr(task, team, actorID); err != nil {
		return nil, nil, err
	}
	return task, team, nil
}

// CreateTask creates a personal task owned by actorID.
func (s *Service) CreateTask(ctx context.Context, actorID string, req models.CreateTaskRequest) (*models.Task, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	task := &models.Task{
		Title:               req.Title,
		Description:         req.Description,
		Priority:            req.Priority,
		Status:              req.Status,
		Deadline:            req.Deadline,
		UrgentBeforeMinutes: req.UrgentBeforeMinutes,
		UserID:              actorID,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": task.ID, "user_id": actorID}).Info("task created")
	return task, nil
}

// AssignTask creates a task for a member of a team managed by managerID.
func (s *Service) AssignTask(ctx context.Context, managerID string, req models.AssignTaskRequest) (*models.Task, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	team, err := s.store.GetTeamByID(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}
	if err := access.AssignErr(team, managerID, req.UserID); err != nil {
		return nil, err
	}

	assignedBy, teamID := managerID, team.ID
	task := &models.Task{
		Title:               req.Title,
		Description:         req.Description,
		Priority:            req.Priority,
		Status:              models.StatusPending,
		Deadline:            req.Deadline,
		UrgentBeforeMinutes: req.UrgentBeforeMinutes,
		UserID:              req.UserID,
		AssignedBy:          &assignedBy,
		TeamID:              &teamID,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": task.ID, "team_id": team.ID, "assignee": req.UserID}).Info("task assigned")

	s.emit(ctx, models.Notification{
		RecipientID: task.UserID,
		SenderID:    &assignedBy,
		Type:        models.NotifyTaskAssigned,
		Message:     fmt.Sprintf("You have been assigned a new task: %s", task.Title),
		Link:        taskLink(task.ID),
		IsUrgent:    task.Priority == models.PriorityHigh,
	})
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, id, actorID string) (*models.Task, error) {
	task, _, err := s.loadVisible(ctx, id, actorID)
	return task, err
}

// ListMyTasks lists the tasks actorID owns, personal and assigned.
func (s *Service) ListMyTasks(ctx context.Context, actorID string, filter models.TaskFilter) ([]models.Task, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ListAssignedByMe lists tasks actorID handed out as a manager.
func (s *Service) ListAssignedByMe(ctx context.Context, actorID string) ([]models.Task, error) {
	return s.store.ListTasksAssignedBy(ctx, actorID)
}

// ListTeamTasks lists every task of a team to its manager and members.
func (s *Service) ListTeamTasks(ctx context.Context, teamID, actorID string) ([]models.Task, error) {
	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !access.IsTeamParticipant(team, actorID) {
		return nil, errors.AccessDenied("Access denied: you are not a member of this team")
	}
	return s.store.ListTasksByTeam(ctx, teamID)
}

// checkStatusChange validates a status written by a general or status
// update. Submitted is only reachable through SubmitTask, and only the
// owner or the assigner may move the status at all.
func checkStatusChange(task *models.Task, actorID string, next models.TaskStatus) error {
	switch next {
	case models.StatusPending, models.StatusInProgress, models.StatusCompleted:
	case models.StatusSubmitted:
		return errors.InvalidTransition("Use submit to send a task for review")
	case models.StatusArchived:
		return errors.Validation("Status archived is not supported")
	default:
		return errors.Validation("Invalid status value")
	}
	if !access.CanChangeStatus(task, actorID) {
		return errors.AccessDenied("Only the task owner or its assigner can change its status")
	}
	if next == models.StatusCompleted && task.Status != models.StatusCompleted && !access.CanSelfComplete(task, actorID) {
		return errors.InvalidTransition("Assigned tasks must be submitted for review instead of being completed directly")
	}
	return nil
}

// UpdateTask applies a partial patch. Any participant who can see the
// task may edit its content; status changes go through checkStatusChange.
func (s *Service) UpdateTask(ctx context.Context, id, actorID string, patch models.UpdateTaskRequest) (*models.Task, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	task, _, err := s.loadVisible(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	expected := task.Status

	if patch.Status != nil && *patch.Status != task.Status {
		if err := checkStatusChange(task, actorID, *patch.Status); err != nil {
			return nil, err
		}
		task.Status = *patch.Status
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, errors.Validation("title must not be empty")
		}
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Deadline != nil {
		task.Deadline = patch.Deadline
	}
	if patch.UrgentBeforeMinutes != nil {
		task.UrgentBeforeMinutes = patch.UrgentBeforeMinutes
	}

	if err := s.store.UpdateTask(ctx, task, expected); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus changes only the status, under the same rules as
// UpdateTask.
func (s *Service) UpdateStatus(ctx context.Context, id, actorID string, status models.TaskStatus) (*models.Task, error) {
	if status == "" {
		return nil, errors.Validation("status is required")
	}
	task, _, err := s.loadVisible(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}
	if err := checkStatusChange(task, actorID, status); err != nil {
		return nil, err
	}
	return s.store.TransitionStatus(ctx, id, models.Transition{From: task.Status, To: status})
}

// SubmitTask hands assigned work back to the assigner for review.
func (s *Service) SubmitTask(ctx context.Context, id, actorID, note string) (*models.Task, error) {
	if len([]rune(note)) > 1000 {
		return nil, errors.Validation("note must be at most 1000 characters")
	}
	task, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == models.StatusCompleted {
		return nil, errors.InvalidTransition("Task is already completed")
	}
	if !access.CanSubmit(task, actorID) {
		return nil, errors.AccessDenied("Only the assignee can submit this task")
	}
	if !task.IsAssigned() {
		return nil, errors.InvalidTransition("Only assigned tasks can be submitted for review")
	}

	tr := models.Transition{From: task.Status, To: models.StatusSubmitted}
	if note != "" {
		tr.SubmissionNote = &note
	}
	updated, err := s.store.TransitionStatus(ctx, id, tr)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": id, "user_id": actorID}).Info("task submitted")

	sender := actorID
	s.emit(ctx, models.Notification{
		RecipientID: *task.AssignedBy,
		SenderID:    &sender,
		Type:        models.NotifyTaskSubmitted,
		Message:     fmt.Sprintf("Task submitted for review: %s", task.Title),
		Link:        taskLink(id),
	})
	return updated, nil
}

// ReviewTask approves (completed) or rejects (back to pending) a
// submitted task. Only the assigner reviews.
func (s *Service) ReviewTask(ctx context.Context, id, actorID string, action models.ReviewAction, note string) (*models.Task, error) {
	if len([]rune(note)) > 1000 {
		return nil, errors.Validation("note must be at most 1000 characters")
	}
	task, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanReview(task, actorID) {
		return nil, errors.AccessDenied("Only the task assigner can review this task")
	}

	var next models.TaskStatus
	var kind models.NotificationType
	switch action {
	case models.ReviewApprove:
		next, kind = models.StatusCompleted, models.NotifyTaskApproved
	case models.ReviewReject:
		next, kind = models.StatusPending, models.NotifyTaskRejected
	default:
		return nil, errors.InvalidTransition("Invalid review action")
	}
	if task.Status != models.StatusSubmitted {
		return nil, errors.InvalidTransition("Task must be submitted before it can be reviewed")
	}

	tr := models.Transition{From: models.StatusSubmitted, To: next}
	if note != "" {
		tr.ReviewNote = &note
	}
	updated, err := s.store.TransitionStatus(ctx, id, tr)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": id, "action": action}).Info("task reviewed")

	msg := fmt.Sprintf("Your task was approved: %s", task.Title)
	if action == models.ReviewReject {
		msg = fmt.Sprintf("Your task was sent back for rework: %s", task.Title)
		if note != "" {
			msg += " (" + note + ")"
		}
	}
	sender := actorID
	s.emit(ctx, models.Notification{
		RecipientID: task.UserID,
		SenderID:    &sender,
		Type:        kind,
		Message:     msg,
		Link:        taskLink(id),
	})
	return updated, nil
}

func (s *Service) DeleteTask(ctx context.Context, id, actorID string) error {
	task, team, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanDeleteTask(task, team, actorID) {
		return errors.AccessDenied("You are not allowed to delete this task")
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	for _, att := range task.Attachments {
		s.dropBlob(ctx, att.StorageKey)
	}
	log.WithFields(log.Fields{"task_id": id, "user_id": actorID}).Info("task deleted")
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
