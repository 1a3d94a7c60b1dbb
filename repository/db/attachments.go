package db

import (
	"encoding/json"
	"time"

	"taskflow/internal/domain/models"
)

// attachmentRecord is the JSONB shape of an attachment. Unlike the API
// shape it keeps the blob key.
type attachmentRecord struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"storageKey"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// storedAttachments is the attachments column codec.
type storedAttachments []models.Attachment

func (a storedAttachments) MarshalJSON() ([]byte, error) {
	records := make([]attachmentRecord, 0, len(a))
	for _, att := range a {
		records = append(records, attachmentRecord(att))
	}
	return json.Marshal(records)
}

func (a *storedAttachments) UnmarshalJSON(data []byte) error {
	var records []attachmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	out := make(storedAttachments, 0, len(records))
	for _, r := range records {
		out = append(out, models.Attachment(r))
	}
	*a = out
	return nil
}
