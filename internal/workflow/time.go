package workflow

import (
	"context"
	"math"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/validation"

	log "github.com/sirupsen/logrus"
)

// TrackTime logs minutes against a task. The log insert and the
// TimeSpent increment happen in one store operation so concurrent calls
// never lose minutes.
func (s *Service) TrackTime(ctx context.Context, id, actorID string, req models.TrackTimeRequest) (*models.Task, error) {
	if math.IsNaN(req.Minutes) || math.IsInf(req.Minutes, 0) || req.Minutes <= 0 {
		return nil, errors.Validation("minutes must be a positive number")
	}
	minutes := int(math.Round(req.Minutes))
	if minutes < 1 {
		return nil, errors.Validation("minutes must be at least 1")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		return nil, errors.Validation("endTime must not be before startTime")
	}

	if _, _, err := s.loadVisible(ctx, id, actorID); err != nil {
		return nil, err
	}

	entry := &models.TimeLog{
		TaskID:    id,
		UserID:    actorID,
		Duration:  minutes,
		Note:      req.Note,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	task, err := s.store.RecordTime(ctx, entry)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": id, "minutes": minutes}).Debug("time tracked")
	return task, nil
}

func (s *Service) ListTimeLogs(ctx context.Context, id, actorID string) ([]models.TimeLog, error) {
	if _, _, err := s.loadVisible(ctx, id, actorID); err != nil {
		return nil, err
	}
	return s.store.ListTimeLogs(ctx, id)
}
