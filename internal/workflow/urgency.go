package workflow

import (
	"context"
	"sort"
	"time"

	"taskflow/internal/domain/models"
)

const urgentFallbackCount = 3

var defaultUrgencyWindow = map[models.Priority]time.Duration{
	models.PriorityHigh:   60 * time.Minute,
	models.PriorityMedium: 30 * time.Minute,
}

// IsUrgent: an open task with a deadline inside its window. The window is
// the task's own UrgentBeforeMinutes, else 60 minutes for high and 30 for
// medium priority; low priority tasks never become urgent by default.
func IsUrgent(task *models.Task, now time.Time) bool {
	if task.Status == models.StatusCompleted || task.Deadline == nil {
		return false
	}
	remaining := task.Deadline.Sub(now)
	if task.UrgentBeforeMinutes != nil {
		return remaining <= time.Duration(*task.UrgentBeforeMinutes)*time.Minute
	}
	window, ok := defaultUrgencyWindow[task.Priority]
	return ok && remaining <= window
}

func IsOverdue(task *models.Task, now time.Time) bool {
	return task.Deadline != nil && now.After(*task.Deadline) && task.Status != models.StatusCompleted
}

// SelectUrgent returns the urgent tasks, or when there are none the three
// open tasks with the nearest deadline (ties go to higher priority).
func SelectUrgent(tasks []models.Task, now time.Time) []models.Task {
	urgent := []models.Task{}
	for i := range tasks {
		if IsUrgent(&tasks[i], now) {
			urgent = append(urgent, tasks[i])
		}
	}
	if len(urgent) > 0 {
		return urgent
	}

	candidates := []models.Task{}
	for _, t := range tasks {
		if t.Status != models.StatusCompleted && t.Deadline != nil {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := *candidates[i].Deadline, *candidates[j].Deadline
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return candidates[i].Priority.Rank() < candidates[j].Priority.Rank()
	})
	if len(candidates) > urgentFallbackCount {
		candidates = candidates[:urgentFallbackCount]
	}
	return candidates
}

// UrgentTasks applies SelectUrgent to the tasks actorID owns.
func (s *Service) UrgentTasks(ctx context.Context, actorID string) ([]models.Task, error) {
	tasks, err := s.store.ListTasksByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return SelectUrgent(tasks, s.now()), nil
}
