package db

import (
	"encoding/json"
	"testing"
	"time"

	"taskflow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredAttachmentsKeepBlobKey(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	atts := []models.Attachment{{
		ID:          "a1",
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Size:        42,
		StorageKey:  "0b1c.pdf",
		UploadedBy:  "u1",
		UploadedAt:  uploaded,
	}}

	column, err := json.Marshal(storedAttachments(atts))
	require.NoError(t, err)
	assert.Contains(t, string(column), `"storageKey":"0b1c.pdf"`)

	var back []models.Attachment
	require.NoError(t, json.Unmarshal(column, (*storedAttachments)(&back)))
	assert.Equal(t, atts, back)

	api, err := json.Marshal(atts)
	require.NoError(t, err)
	assert.NotContains(t, string(api), "storageKey")
	assert.NotContains(t, string(api), "0b1c.pdf")
}

func TestStoredAttachmentsEmptyColumn(t *testing.T) {
	var back []models.Attachment
	require.NoError(t, json.Unmarshal([]byte(`[]`), (*storedAttachments)(&back)))
	assert.NotNil(t, back)
	assert.Empty(t, back)

	column, err := json.Marshal(storedAttachments(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(column))
}
