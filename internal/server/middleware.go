package server

import (
	"net/http"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/identity"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with its outcome.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":  ctx.Request.Method,
			"path":    ctx.Request.URL.Path,
			"status":  status,
			"latency": time.Since(start).String(),
			"client":  ctx.ClientIP(),
		})
		if id := actorID(ctx); id != "" {
			entry = entry.WithField("user_id", id)
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// Recovery turns a panic into a 500 failure body and reports it.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(ctx *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"method": ctx.Request.Method,
			"path":   ctx.Request.URL.Path,
			"panic":  recovered,
		}).Error("panic recovered")
		sentry.CurrentHub().Recover(recovered)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": errors.ErrInternalServer.Message,
		})
	})
}

// Authenticate requires a valid Bearer access token and stores its user
// id on the context.
func Authenticate(tokens *identity.TokenService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			fail(ctx, errors.Unauthorized("Missing bearer token"))
			return
		}
		claims, err := tokens.ParseAccess(strings.TrimSpace(token))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.Set(actorKey, claims.UserID)
		ctx.Next()
	}
}
