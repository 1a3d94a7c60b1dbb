package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.CreateTask(ctx.Request.Context(), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, task)
}

func (api *TaskAPI) listTasks(ctx *gin.Context) {
	var filter models.TaskFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		fail(ctx, errors.ErrBadRequest)
		return
	}
	tasks, err := api.svc.Tasks.ListMyTasks(ctx.Request.Context(), actorID(ctx), filter)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, tasks)
}

func (api *TaskAPI) assignTask(ctx *gin.Context) {
	var req models.AssignTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.AssignTask(ctx.Request.Context(), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, task)
}

func (api *TaskAPI) listAssigned(ctx *gin.Context) {
	tasks, err := api.svc.Tasks.ListAssignedByMe(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, tasks)
}

func (api *TaskAPI) listUrgent(ctx *gin.Context) {
	tasks, err := api.svc.Tasks.UrgentTasks(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, tasks)
}

func (api *TaskAPI) getTask(ctx *gin.Context) {
	task, err := api.svc.Tasks.GetTask(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	var req models.UpdateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.UpdateTask(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	if err := api.svc.Tasks.DeleteTask(ctx.Request.Context(), ctx.Param("id"), actorID(ctx)); err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Task deleted"})
}

func (api *TaskAPI) updateStatus(ctx *gin.Context) {
	var req models.UpdateStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req.Status)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) submitTask(ctx *gin.Context) {
	var req models.SubmitTaskRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.SubmitTask(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req.Note)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) reviewTask(ctx *gin.Context) {
	var req models.ReviewTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.ReviewTask(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req.Action, req.Note)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) trackTime(ctx *gin.Context) {
	var req models.TrackTimeRequest
	if !bindJSON(ctx, &req) {
		return
	}
	task, err := api.svc.Tasks.TrackTime(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, task)
}

func (api *TaskAPI) listTimeLogs(ctx *gin.Context) {
	logs, err := api.svc.Tasks.ListTimeLogs(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, logs)
}

func (api *TaskAPI) addAttachment(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadSize)
	fh, err := ctx.FormFile("file")
	if err != nil {
		fail(ctx, errors.Validation("file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(ctx, errors.Internal("Failed to read upload", err))
		return
	}
	defer f.Close()

	task, err := api.svc.Tasks.AddAttachment(ctx.Request.Context(), ctx.Param("id"), actorID(ctx),
		filepath.Base(fh.Filename), fh.Header.Get("Content-Type"), f)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, task)
}

func (api *TaskAPI) downloadAttachment(ctx *gin.Context) {
	att, rc, err := api.svc.Tasks.OpenAttachment(ctx.Request.Context(), ctx.Param("id"), ctx.Param("attachmentID"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	defer rc.Close()

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.DataFromReader(http.StatusOK, att.Size, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", att.FileName),
	})
}

func (api *TaskAPI) removeAttachment(ctx *gin.Context) {
	err := api.svc.Tasks.RemoveAttachment(ctx.Request.Context(), ctx.Param("id"), ctx.Param("attachmentID"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Attachment removed"})
}
