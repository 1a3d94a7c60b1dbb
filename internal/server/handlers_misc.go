package server

import (
	"net/http"
	"strconv"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func (api *TaskAPI) createComment(ctx *gin.Context) {
	var req models.CommentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	comment, err := api.svc.Comments.Create(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, comment)
}

func (api *TaskAPI) listComments(ctx *gin.Context) {
	list, err := api.svc.Comments.List(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, list)
}

func (api *TaskAPI) getComment(ctx *gin.Context) {
	comment, err := api.svc.Comments.Get(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, comment)
}

func (api *TaskAPI) updateComment(ctx *gin.Context) {
	var req models.CommentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	comment, err := api.svc.Comments.Update(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, comment)
}

func (api *TaskAPI) deleteComment(ctx *gin.Context) {
	if err := api.svc.Comments.Delete(ctx.Request.Context(), ctx.Param("id"), actorID(ctx)); err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Comment deleted"})
}

func (api *TaskAPI) personalDashboard(ctx *gin.Context) {
	d, err := api.svc.Dashboard.Personal(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

func (api *TaskAPI) teamDashboard(ctx *gin.Context) {
	d, err := api.svc.Dashboard.Team(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

func (api *TaskAPI) listNotifications(ctx *gin.Context) {
	unreadOnly := false
	if raw := ctx.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(ctx, errors.Validation("unread must be true or false"))
			return
		}
		unreadOnly = v
	}
	list, err := api.svc.Notifications.List(ctx.Request.Context(), actorID(ctx), unreadOnly)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, list)
}

func (api *TaskAPI) markNotificationRead(ctx *gin.Context) {
	if err := api.svc.Notifications.MarkRead(ctx.Request.Context(), ctx.Param("id"), actorID(ctx)); err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (api *TaskAPI) markAllNotificationsRead(ctx *gin.Context) {
	n, err := api.svc.Notifications.MarkAllRead(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"updated": n})
}
