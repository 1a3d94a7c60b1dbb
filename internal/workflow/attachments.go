package workflow

import (
	"context"
	"io"
	"os"
	"slices"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	log "github.com/sirupsen/logrus"
)

// AddAttachment stores the bytes of r and records the attachment on the
// task. If recording fails the blob is removed again.
func (s *Service) AddAttachment(ctx context.Context, id, actorID, fileName, contentType string, r io.Reader) (*models.Task, error) {
	if s.blobs == nil {
		return nil, errors.Validation("Attachments are disabled")
	}
	if fileName == "" {
		return nil, errors.Validation("file is required")
	}
	if _, _, err := s.loadVisible(ctx, id, actorID); err != nil {
		return nil, err
	}

	key, size, err := s.blobs.Put(ctx, fileName, r)
	if err != nil {
		return nil, errors.Internal("Failed to store attachment", err)
	}
	task, err := s.store.AddAttachment(ctx, id, models.Attachment{
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		StorageKey:  key,
		UploadedBy:  actorID,
	})
	if err != nil {
		s.dropBlob(ctx, key)
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": id, "file": fileName, "size": size}).Info("attachment added")
	return task, nil
}

func (s *Service) RemoveAttachment(ctx context.Context, id, attachmentID, actorID string) error {
	if _, _, err := s.loadVisible(ctx, id, actorID); err != nil {
		return err
	}
	removed, err := s.store.RemoveAttachment(ctx, id, attachmentID)
	if err != nil {
		return err
	}
	s.dropBlob(ctx, removed.StorageKey)
	return nil
}

// OpenAttachment returns the attachment metadata and a reader over its
// bytes. The caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, id, attachmentID, actorID string) (*models.Attachment, io.ReadCloser, error) {
	if s.blobs == nil {
		return nil, nil, errors.ErrAttachmentNotFound
	}
	task, _, err := s.loadVisible(ctx, id, actorID)
	if err != nil {
		return nil, nil, err
	}
	idx := slices.IndexFunc(task.Attachments, func(a models.Attachment) bool { return a.ID == attachmentID })
	if idx < 0 {
		return nil, nil, errors.ErrAttachmentNotFound
	}
	att := task.Attachments[idx]
	rc, err := s.blobs.Open(ctx, att.StorageKey)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ErrAttachmentNotFound
		}
		return nil, nil, errors.Internal("Failed to open attachment", err)
	}
	return &att, rc, nil
}
