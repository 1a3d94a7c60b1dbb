package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func sampleTasks(n int) []models.Task {
	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, models.Task{
			ID:          fmt.Sprintf("task-%02d", i),
			Title:       fmt.Sprintf("Prepare release notes part %d", i),
			Description: "Collect merged changes and summarize them for the team",
			Priority:    models.PriorityMedium,
			Status:      models.StatusPending,
			Attachments: []models.Attachment{},
		})
	}
	return tasks
}

func compressionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(), GzipRequestDecompress(), GzipResponseCompress())

	router.GET("/api/tasks", func(c *gin.Context) { respond(c, http.StatusOK, sampleTasks(20)) })
	router.GET("/api/tasks/one", func(c *gin.Context) { respond(c, http.StatusOK, sampleTasks(1)[0]) })
	router.POST("/api/tasks", func(c *gin.Context) {
		var req models.CreateTaskRequest
		if !bindJSON(c, &req) {
			return
		}
		respond(c, http.StatusCreated, req)
	})
	router.DELETE("/api/tasks/one", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/api/tasks/one/attachments/a1", func(c *gin.Context) {
		data := bytes.Repeat([]byte{0x7f}, 4096)
		c.DataFromReader(http.StatusOK, int64(len(data)), "application/octet-stream", bytes.NewReader(data), nil)
	})
	router.GET("/api/notes", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString("head ")
		c.Writer.Flush()
		_, _ = c.Writer.WriteString(strings.Repeat("tail ", 400))
	})
	router.GET("/api/boom", func(*gin.Context) { panic("boom") })
	return router
}

func TestGzipResponseCompress(t *testing.T) {
	router := compressionRouter()

	tests := []struct {
		name           string
		method         string
		path           string
		acceptEncoding string
		want           struct {
			statusCode int
			gzipped    bool
		}
	}{
		{
			name:           "large task list is compressed",
			method:         http.MethodGet,
			path:           "/api/tasks",
			acceptEncoding: "gzip, deflate",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusOK, gzipped: true},
		},
		{
			name:   "client without gzip gets plain list",
			method: http.MethodGet,
			path:   "/api/tasks",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusOK},
		},
		{
			name:           "single task stays under the threshold",
			method:         http.MethodGet,
			path:           "/api/tasks/one",
			acceptEncoding: "gzip",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusOK},
		},
		{
			name:           "no content",
			method:         http.MethodDelete,
			path:           "/api/tasks/one",
			acceptEncoding: "gzip",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusNoContent},
		},
		{
			name:           "binary attachment download",
			method:         http.MethodGet,
			path:           "/api/tasks/one/attachments/a1",
			acceptEncoding: "gzip",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusOK},
		},
		{
			name:           "flushed early stays plain",
			method:         http.MethodGet,
			path:           "/api/notes",
			acceptEncoding: "gzip",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusOK},
		},
		{
			name:           "head request",
			method:         http.MethodHead,
			path:           "/api/tasks",
			acceptEncoding: "gzip",
			want: struct {
				statusCode int
				gzipped    bool
			}{statusCode: http.StatusNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			if tt.want.gzipped {
				assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
				assert.Empty(t, w.Header().Get("Content-Length"))
				assert.Contains(t, w.Header().Get("Vary"), "Accept-Encoding")
				return
			}
			assert.Empty(t, w.Header().Get("Content-Encoding"))
		})
	}
}

func TestGzipResponseBodyRoundTrip(t *testing.T) {
	router := compressionRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	var env struct {
		Success bool          `json:"success"`
		Data    []models.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gunzip(t, w.Body.Bytes()), &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data, 20)
	assert.Equal(t, "task-19", env.Data[19].ID)
}

func TestGzipResponseKeepsPlainBodies(t *testing.T) {
	router := compressionRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "head "+strings.Repeat("tail ", 400), w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/tasks/one/attachments/a1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, bytes.Repeat([]byte{0x7f}, 4096), w.Body.Bytes())
}

func TestGzipResponseAfterPanic(t *testing.T) {
	router := compressionRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/boom", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, w.Body.String())
}

func TestGzipRequestDecompress(t *testing.T) {
	router := compressionRouter()
	body := []byte(`{"title":"Compressed task","priority":"high"}`)

	tests := []struct {
		name     string
		body     []byte
		encoding string
		want     struct {
			statusCode int
			body       string
		}
	}{
		{
			name: "plain body",
			body: body,
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusCreated, body: "Compressed task"},
		},
		{
			name:     "gzipped body",
			body:     gzipBytes(t, body),
			encoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusCreated, body: "Compressed task"},
		},
		{
			name:     "encoding header is case insensitive",
			body:     gzipBytes(t, body),
			encoding: "GZIP",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusCreated, body: "Compressed task"},
		},
		{
			name:     "corrupt gzip",
			body:     []byte("definitely not gzip"),
			encoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusBadRequest, body: `"message":"Invalid gzip request body"`},
		},
		{
			name:     "gzipped malformed json",
			body:     gzipBytes(t, []byte(`{"title":`)),
			encoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusBadRequest, body: `"message":"Malformed request body"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.encoding != "" {
				req.Header.Set("Content-Encoding", tt.encoding)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.want.body)
		})
	}
}

func TestAddVary(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     string
	}{
		{name: "empty", want: "Accept-Encoding"},
		{name: "other value", existing: "Origin", want: "Origin, Accept-Encoding"},
		{name: "already present", existing: "Accept-Encoding", want: "Accept-Encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.existing != "" {
				h.Set("Vary", tt.existing)
			}
			addVary(h)
			assert.Equal(t, tt.want, h.Get("Vary"))
		})
	}
}
