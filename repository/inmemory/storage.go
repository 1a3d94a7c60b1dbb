package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Storage keeps every collection in process memory. A single RWMutex
// makes each method atomic, which is what gives RecordTime, the status
// compare-and-swaps and ApproveLeaveRequest their guarantees here.
type Storage struct {
	mu            sync.RWMutex
	users         map[string]models.User
	teams         map[string]models.Team
	tasks         map[string]models.Task
	timeLogs      map[string]models.TimeLog
	comments      map[string]models.Comment
	leaveRequests map[string]models.TeamLeaveRequest
	notifications map[string]models.Notification
	now           func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		users:         make(map[string]models.User),
		teams:         make(map[string]models.Team),
		tasks:         make(map[string]models.Task),
		timeLogs:      make(map[string]models.TimeLog),
		comments:      make(map[string]models.Comment),
		leaveRequests: make(map[string]models.TeamLeaveRequest),
		notifications: make(map[string]models.Notification),
		now:           time.Now,
	}
}

func (s *Storage) Ping(context.Context) error { return nil }

func (s *Storage) Close() {}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func (s *Storage) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

// Users

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return errors.ErrUserAlreadyExists
		}
	}
	user.ID = newID(user.ID)
	user.CreatedAt = s.stamp(user.CreatedAt)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	s.users[user.ID] = *user
	log.WithField("user_id", user.ID).Debug("[store] user created")
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.users[user.ID]
	if !exists {
		return errors.ErrUserNotFound
	}
	for id, other := range s.users {
		if id != user.ID && (other.Username == user.Username || other.Email == user.Email) {
			return errors.ErrUserAlreadyExists
		}
	}
	user.CreatedAt = current.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) SetUserRole(_ context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return errors.ErrUserNotFound
	}
	user.Role = role
	s.users[id] = user
	return nil
}

// Teams

func cloneTeam(t models.Team) models.Team {
	t.Members = slices.Clone(t.Members)
	if t.Members == nil {
		t.Members = []string{}
	}
	return t
}

func (s *Storage) CreateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[team.ManagerID]; !exists {
		return errors.ErrUserNotFound
	}
	team.ID = newID(team.ID)
	team.CreatedAt = s.stamp(team.CreatedAt)
	if team.Members == nil {
		team.Members = []string{}
	}
	s.teams[team.ID] = cloneTeam(*team)
	log.WithField("team_id", team.ID).Debug("[store] team created")
	return nil
}

func (s *Storage) GetTeamByID(_ context.Context, id string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, exists := s.teams[id]
	if !exists {
		return nil, errors.ErrTeamNotFound
	}
	team = cloneTeam(team)
	return &team, nil
}

func (s *Storage) UpdateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.teams[team.ID]
	if !exists {
		return errors.ErrTeamNotFound
	}
	current.Name = team.Name
	current.Bio = team.Bio
	current.ProfilePicture = team.ProfilePicture
	s.teams[team.ID] = current
	return nil
}

func (s *Storage) sortedTeams(keep func(models.Team) bool) []models.Team {
	teams := []models.Team{}
	for _, t := range s.teams {
		if keep(t) {
			teams = append(teams, cloneTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].CreatedAt.Equal(teams[j].CreatedAt) {
			return teams[i].ID < teams[j].ID
		}
		return teams[i].CreatedAt.Before(teams[j].CreatedAt)
	})
	return teams
}

func (s *Storage) ListTeamsByManager(_ context.Context, managerID string) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTeams(func(t models.Team) bool { return t.ManagerID == managerID }), nil
}

func (s *Storage) ListTeamsByMember(_ context.Context, userID string) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTeams(func(t models.Team) bool { return t.HasMember(userID) }), nil
}

// AddTeamMember reports false when userID already was a member.
func (s *Storage) AddTeamMember(_ context.Context, teamID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, exists := s.teams[teamID]
	if !exists {
		return false, errors.ErrTeamNotFound
	}
	if team.HasMember(userID) {
		return false, nil
	}
	team.Members = append(slices.Clone(team.Members), userID)
	s.teams[teamID] = team
	return true, nil
}

func (s *Storage) RemoveTeamMember(_ context.Context, teamID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeMemberLocked(teamID, userID)
}

func (s *Storage) removeMemberLocked(teamID, userID string) (bool, error) {
	team, exists := s.teams[teamID]
	if !exists {
		return false, errors.ErrTeamNotFound
	}
	idx := slices.Index(team.Members, userID)
	if idx < 0 {
		return false, nil
	}
	team.Members = slices.Delete(slices.Clone(team.Members), idx, idx+1)
	s.teams[teamID] = team
	return true, nil
}

// DeleteTeam removes the team together with its leave requests, its
// tasks and those tasks' comments.
func (s *Storage) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[id]; !exists {
		return errors.ErrTeamNotFound
	}
	for reqID, req := range s.leaveRequests {
		if req.TeamID == id {
			delete(s.leaveRequests, reqID)
		}
	}
	removed := 0
	for taskID, task := range s.tasks {
		if task.TeamID != nil && *task.TeamID == id {
			s.deleteTaskLocked(taskID)
			removed++
		}
	}
	delete(s.teams, id)
	log.WithFields(log.Fields{"team_id": id, "tasks": removed}).Debug("[store] team deleted")
	return nil
}

// Tasks

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTask(t models.Task) models.Task {
	t.Deadline = clonePtr(t.Deadline)
	t.AssignedBy = clonePtr(t.AssignedBy)
	t.TeamID = clonePtr(t.TeamID)
	t.UrgentBeforeMinutes = clonePtr(t.UrgentBeforeMinutes)
	t.SubmissionNote = clonePtr(t.SubmissionNote)
	t.ReviewNote = clonePtr(t.ReviewNote)
	t.Attachments = slices.Clone(t.Attachments)
	if t.Attachments == nil {
		t.Attachments = []models.Attachment{}
	}
	return t
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = newID(task.ID)
	task.CreatedAt = s.stamp(task.CreatedAt)
	task.UpdatedAt = task.CreatedAt
	if task.Attachments == nil {
		task.Attachments = []models.Attachment{}
	}
	s.tasks[task.ID] = cloneTask(*task)
	log.WithField("task_id", task.ID).Debug("[store] task created")
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	task = cloneTask(task)
	return &task, nil
}

// UpdateTask writes the editable fields of task while the stored status
// still equals expected. TimeSpent and attachments are never touched.
func (s *Storage) UpdateTask(_ context.Context, task *models.Task, expected models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.tasks[task.ID]
	if !exists {
		return errors.ErrTaskNotFound
	}
	if current.Status != expected {
		return errors.ErrStatusConflict
	}
	current.Title = task.Title
	current.Description = task.Description
	current.Priority = task.Priority
	current.Status = task.Status
	current.Deadline = clonePtr(task.Deadline)
	current.UrgentBeforeMinutes = clonePtr(task.UrgentBeforeMinutes)
	current.UpdatedAt = s.now().UTC()
	s.tasks[task.ID] = current

	*task = cloneTask(current)
	return nil
}

func (s *Storage) TransitionStatus(_ context.Context, id string, tr models.Transition) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	if task.Status != tr.From {
		return nil, errors.ErrStatusConflict
	}
	task.Status = tr.To
	if tr.SubmissionNote != nil {
		task.SubmissionNote = clonePtr(tr.SubmissionNote)
	}
	if tr.ReviewNote != nil {
		task.ReviewNote = clonePtr(tr.ReviewNote)
	}
	task.UpdatedAt = s.now().UTC()
	s.tasks[id] = task

	out := cloneTask(task)
	return &out, nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	s.deleteTaskLocked(id)
	return nil
}

// deleteTaskLocked drops the task and its comments. Time logs stay.
func (s *Storage) deleteTaskLocked(id string) {
	delete(s.tasks, id)
	for commentID, c := range s.comments {
		if c.TaskID == id {
			delete(s.comments, commentID)
		}
	}
}

func (s *Storage) sortedTasks(keep func(models.Task) bool) []models.Task {
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if keep(t) {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

func (s *Storage) ListTasksByUser(_ context.Context, userID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTasks(func(t models.Task) bool { return t.UserID == userID }), nil
}

func (s *Storage) ListTasksByTeam(_ context.Context, teamID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTasks(func(t models.Task) bool { return t.TeamID != nil && *t.TeamID == teamID }), nil
}

func (s *Storage) ListTasksAssignedBy(_ context.Context, assignerID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTasks(func(t models.Task) bool { return t.AssignedBy != nil && *t.AssignedBy == assignerID }), nil
}

// RecordTime appends entry and adds its duration to the task's TimeSpent
// in one step.
func (s *Storage) RecordTime(_ context.Context, entry *models.TimeLog) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[entry.TaskID]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	entry.ID = newID(entry.ID)
	entry.CreatedAt = s.stamp(entry.CreatedAt)
	s.timeLogs[entry.ID] = *entry

	task.TimeSpent += entry.Duration
	task.UpdatedAt = s.now().UTC()
	s.tasks[task.ID] = task

	out := cloneTask(task)
	return &out, nil
}

func (s *Storage) ListTimeLogs(_ context.Context, taskID string) ([]models.TimeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []models.TimeLog{}
	for _, l := range s.timeLogs {
		if l.TaskID == taskID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID < logs[j].ID
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
	return logs, nil
}

func (s *Storage) AddAttachment(_ context.Context, taskID string, att models.Attachment) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	att.ID = newID(att.ID)
	att.UploadedAt = s.stamp(att.UploadedAt)
	task.Attachments = append(slices.Clone(task.Attachments), att)
	task.UpdatedAt = s.now().UTC()
	s.tasks[taskID] = task

	out := cloneTask(task)
	return &out, nil
}

func (s *Storage) RemoveAttachment(_ context.Context, taskID, attachmentID string) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	idx := slices.IndexFunc(task.Attachments, func(a models.Attachment) bool { return a.ID == attachmentID })
	if idx < 0 {
		return nil, errors.ErrAttachmentNotFound
	}
	removed := task.Attachments[idx]
	task.Attachments = slices.Delete(slices.Clone(task.Attachments), idx, idx+1)
	task.UpdatedAt = s.now().UTC()
	s.tasks[taskID] = task
	return &removed, nil
}

// Comments

func (s *Storage) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[c.TaskID]; !exists {
		return errors.ErrTaskNotFound
	}
	c.ID = newID(c.ID)
	c.CreatedAt = s.stamp(c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	s.comments[c.ID] = *c
	return nil
}

func (s *Storage) GetCommentByID(_ context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.comments[id]
	if !exists {
		return nil, errors.ErrCommentNotFound
	}
	return &c, nil
}

func (s *Storage) ListCommentsByTask(_ context.Context, taskID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := []models.Comment{}
	for _, c := range s.comments {
		if c.TaskID == taskID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *Storage) UpdateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.comments[c.ID]
	if !exists {
		return errors.ErrCommentNotFound
	}
	current.Content = c.Content
	current.UpdatedAt = s.now().UTC()
	s.comments[c.ID] = current
	*c = current
	return nil
}

func (s *Storage) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.comments[id]; !exists {
		return errors.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

// Leave requests

func (s *Storage) pendingLeaveLocked(teamID, userID string) (models.TeamLeaveRequest, bool) {
	for _, r := range s.leaveRequests {
		if r.TeamID == teamID && r.UserID == userID && r.Status == models.LeavePending {
			return r, true
		}
	}
	return models.TeamLeaveRequest{}, false
}

// CreateLeaveRequest refuses a second pending request for the same team
// and user with ErrLeavePending.
func (s *Storage) CreateLeaveRequest(_ context.Context, req *models.TeamLeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[req.TeamID]; !exists {
		return errors.ErrTeamNotFound
	}
	if _, exists := s.pendingLeaveLocked(req.TeamID, req.UserID); exists {
		return errors.ErrLeavePending
	}
	req.ID = newID(req.ID)
	req.CreatedAt = s.stamp(req.CreatedAt)
	if req.Status == "" {
		req.Status = models.LeavePending
	}
	s.leaveRequests[req.ID] = *req
	return nil
}

func (s *Storage) FindPendingLeaveRequest(_ context.Context, teamID, userID string) (*models.TeamLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.pendingLeaveLocked(teamID, userID)
	if !exists {
		return nil, errors.ErrLeaveRequestNotFound
	}
	return &r, nil
}

func (s *Storage) GetLeaveRequestByID(_ context.Context, id string) (*models.TeamLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.leaveRequests[id]
	if !exists {
		return nil, errors.ErrLeaveRequestNotFound
	}
	return &r, nil
}

// ListLeaveRequests filters by status; an empty status lists all.
func (s *Storage) ListLeaveRequests(_ context.Context, teamID string, status models.LeaveStatus) ([]models.TeamLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.TeamLeaveRequest{}
	for _, r := range s.leaveRequests {
		if r.TeamID == teamID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ApproveLeaveRequest marks a pending request approved, drops the user
// from the team and turns their tasks in that team into personal tasks.
// It returns the number of detached tasks.
func (s *Storage) ApproveLeaveRequest(_ context.Context, id string) (*models.TeamLeaveRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, exists := s.leaveRequests[id]
	if !exists {
		return nil, 0, errors.ErrLeaveRequestNotFound
	}
	if req.Status != models.LeavePending {
		return nil, 0, errors.ErrLeaveNotPending
	}
	if _, err := s.removeMemberLocked(req.TeamID, req.UserID); err != nil {
		return nil, 0, err
	}

	var detached int64
	for taskID, task := range s.tasks {
		if task.UserID == req.UserID && task.TeamID != nil && *task.TeamID == req.TeamID {
			task.TeamID = nil
			task.AssignedBy = nil
			task.UpdatedAt = s.now().UTC()
			s.tasks[taskID] = task
			detached++
		}
	}

	req.Status = models.LeaveApproved
	s.leaveRequests[id] = req
	return &req, detached, nil
}

func (s *Storage) RejectLeaveRequest(_ context.Context, id string) (*models.TeamLeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, exists := s.leaveRequests[id]
	if !exists {
		return nil, errors.ErrLeaveRequestNotFound
	}
	if req.Status != models.LeavePending {
		return nil, errors.ErrLeaveNotPending
	}
	req.Status = models.LeaveRejected
	s.leaveRequests[id] = req
	return &req, nil
}

// Notifications

func (s *Storage) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = newID(n.ID)
	n.CreatedAt = s.stamp(n.CreatedAt)
	s.notifications[n.ID] = *n
	return nil
}

func (s *Storage) ListNotifications(_ context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Notification{}
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Storage) MarkNotificationRead(_ context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.notifications[id]
	if !exists || n.RecipientID != recipientID {
		return errors.ErrNotificationNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Storage) MarkAllNotificationsRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, notif := range s.notifications {
		if notif.RecipientID == recipientID && !notif.IsRead {
			notif.IsRead = true
			s.notifications[id] = notif
			n++
		}
	}
	return n, nil
}
