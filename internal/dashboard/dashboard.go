// Package dashboard computes read-only task statistics for a user or a
// team.
package dashboard

import (
	"context"
	"sort"
	"time"

	"taskflow/internal/access"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/workflow"
)

const upcomingLimit = 5

type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
	ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	ListTasksByTeam(ctx context.Context, teamID string) ([]models.Task, error)
}

type Counts struct {
	Total      int                       `json:"total"`
	ByStatus   map[models.TaskStatus]int `json:"byStatus"`
	ByPriority map[models.Priority]int   `json:"byPriority"`
	Overdue    int                       `json:"overdue"`
	DueToday   int                       `json:"dueToday"`
	Urgent     int                       `json:"urgent"`
	TimeSpent  int                       `json:"timeSpent"`
}

type Personal struct {
	Counts
	Upcoming []models.Task `json:"upcoming"`
}

type MemberCounts struct {
	Counts
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Team struct {
	Counts
	TeamID   string         `json:"teamId"`
	TeamName string         `json:"teamName"`
	Members  []MemberCounts `json:"members"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func newCounts() Counts {
	c := Counts{
		ByStatus:   map[models.TaskStatus]int{},
		ByPriority: map[models.Priority]int{},
	}
	for _, st := range []models.TaskStatus{models.StatusPending, models.StatusInProgress, models.StatusSubmitted, models.StatusCompleted} {
		c.ByStatus[st] = 0
	}
	for _, p := range []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh} {
		c.ByPriority[p] = 0
	}
	return c
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (c *Counts) add(task *models.Task, now time.Time) {
	c.Total++
	c.ByStatus[task.Status]++
	c.ByPriority[task.Priority]++
	c.TimeSpent += task.TimeSpent
	if workflow.IsOverdue(task, now) {
		c.Overdue++
	}
	if task.Deadline != nil && task.Status != models.StatusCompleted && sameDay(now, *task.Deadline) {
		c.DueToday++
	}
	if workflow.IsUrgent(task, now) {
		c.Urgent++
	}
}

// Summarize counts tasks as of now.
func Summarize(tasks []models.Task, now time.Time) Counts {
	c := newCounts()
	for i := range tasks {
		c.add(&tasks[i], now)
	}
	return c
}

// upcoming returns the open tasks with a deadline still ahead, nearest
// first.
func upcoming(tasks []models.Task, now time.Time) []models.Task {
	out := []models.Task{}
	for _, t := range tasks {
		if t.Deadline != nil && t.Status != models.StatusCompleted && !t.Deadline.Before(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(*out[j].Deadline) })
	if len(out) > upcomingLimit {
		out = out[:upcomingLimit]
	}
	return out
}

func (s *Service) Personal(ctx context.Context, actorID string) (*Personal, error) {
	tasks, err := s.store.ListTasksByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &Personal{Counts: Summarize(tasks, now), Upcoming: upcoming(tasks, now)}, nil
}

// Team aggregates every task of the team. Only its manager may look.
func (s *Service) Team(ctx context.Context, teamID, actorID string) (*Team, error) {
	team, err := s.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !access.IsTeamManager(team, actorID) {
		return nil, errors.AccessDenied("Access denied: only the team manager can view the team dashboard")
	}
	tasks, err := s.store.ListTasksByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	perMember := make(map[string]*MemberCounts, len(team.Members))
	members := make([]MemberCounts, 0, len(team.Members))
	for _, id := range team.Members {
		mc := MemberCounts{UserID: id, Counts: newCounts()}
		if user, err := s.store.GetUserByID(ctx, id); err == nil {
			mc.Username = user.Username
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		members = append(members, mc)
	}
	for i := range members {
		perMember[members[i].UserID] = &members[i]
	}
	for i := range tasks {
		if mc, ok := perMember[tasks[i].UserID]; ok {
			mc.add(&tasks[i], now)
		}
	}

	return &Team{
		TeamID:   team.ID,
		TeamName: team.Name,
		Counts:   Summarize(tasks, now),
		Members:  members,
	}, nil
}
