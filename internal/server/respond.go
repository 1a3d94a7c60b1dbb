package server

import (
	"io"
	"net/http"

	"taskflow/internal/domain/errors"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const actorKey = "userID"

func actorID(ctx *gin.Context) string {
	return ctx.GetString(actorKey)
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindAccessDenied:
		return http.StatusForbidden
	case errors.KindValidation, errors.KindInvalidTransition:
		return http.StatusBadRequest
	case errors.KindConflict:
		return http.StatusConflict
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respond(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes the failure body for err. Internal errors are logged with
// their cause and reported to Sentry; the caller only sees the message.
func fail(ctx *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := statusFor(kind)
	if kind == errors.KindInternal {
		reportInternal(ctx, err)
	}
	ctx.AbortWithStatusJSON(status, gin.H{"success": false, "message": errors.Message(err)})
}

func reportInternal(ctx *gin.Context, err error) {
	log.WithFields(log.Fields{
		"method":  ctx.Request.Method,
		"path":    ctx.Request.URL.Path,
		"user_id": actorID(ctx),
	}).WithError(err).Error("request failed")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", ctx.Request.Method)
		scope.SetTag("route", ctx.FullPath())
		if id := actorID(ctx); id != "" {
			scope.SetUser(sentry.User{ID: id})
		}
		sentry.CaptureException(err)
	})
}

func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		fail(ctx, errors.ErrBadRequest)
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		fail(ctx, errors.ErrBadRequest)
		return false
	}
	return true
}
