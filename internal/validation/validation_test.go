package validation

import (
	"testing"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  struct {
			ok       bool
			contains string
		}
	}{
		{
			name:  "valid team",
			input: models.CreateTeamRequest{Name: "Platform"},
			want: struct {
				ok       bool
				contains string
			}{ok: true},
		},
		{
			name:  "missing team name",
			input: models.CreateTeamRequest{},
			want: struct {
				ok       bool
				contains string
			}{contains: "name is required"},
		},
		{
			name:  "bad priority",
			input: models.CreateTaskRequest{Title: "x", Priority: "urgent"},
			want: struct {
				ok       bool
				contains string
			}{contains: "priority must be one of: low, medium, high"},
		},
		{
			name:  "comment too long",
			input: models.CommentRequest{Content: string(make([]byte, 1001))},
			want: struct {
				ok       bool
				contains string
			}{contains: "content must be at most 1000 characters"},
		},
		{
			name:  "bad email",
			input: models.RegisterRequest{Username: "alice", Email: "nope", Password: "secret1"},
			want: struct {
				ok       bool
				contains string
			}{contains: "email must be a valid email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.want.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)
			assert.Contains(t, err.Error(), tt.want.contains)
		})
	}
}
