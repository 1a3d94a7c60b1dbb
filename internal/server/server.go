package server

import (
	"context"
	"net/http"
	"time"

	"taskflow/internal/comments"
	"taskflow/internal/dashboard"
	"taskflow/internal/domain/errors"
	"taskflow/internal/identity"
	"taskflow/internal/notify"
	"taskflow/internal/teams"
	"taskflow/internal/workflow"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the HTTP layer dispatches to.
type Services struct {
	Identity      *identity.Service
	Tasks         *workflow.Service
	Teams         *teams.Service
	Comments      *comments.Service
	Dashboard     *dashboard.Service
	Notifications *notify.Service
	Store         Pinger
}

func (s Services) complete() bool {
	return s.Identity != nil && s.Tasks != nil && s.Teams != nil && s.Comments != nil &&
		s.Dashboard != nil && s.Notifications != nil && s.Store != nil
}

type TaskAPI struct {
	httpSrv *http.Server
	svc     Services
}

// NewTaskAPI returns nil when any service is missing.
func NewTaskAPI(cfg *Config, svc Services) *TaskAPI {
	if cfg == nil || !svc.complete() {
		return nil
	}

	api := &TaskAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc: svc,
	}
	api.configRoutes()
	return api
}

func (api *TaskAPI) Handler() http.Handler { return api.httpSrv.Handler }

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	log.WithField("addr", api.httpSrv.Addr).Info("HTTP server listening")
	if err := api.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RequestLogger(), Recovery(), GzipRequestDecompress(), GzipResponseCompress())

	router.NoRoute(func(ctx *gin.Context) {
		fail(ctx, errors.NotFound("Route not found"))
	})
	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "Method not allowed"})
	})

	router.GET("/health", api.health)

	apiGroup := router.Group("/api")

	auth := apiGroup.Group("/auth")
	{
		auth.POST("/register", api.register)
		auth.POST("/login", api.login)
		auth.POST("/refresh", api.refresh)
	}

	private := apiGroup.Group("")
	private.Use(Authenticate(api.svc.Identity.Tokens()))

	private.POST("/auth/logout", api.logout)

	users := private.Group("/users")
	{
		users.GET("/me", api.getProfile)
		users.PUT("/me", api.updateProfile)
	}

	tasks := private.Group("/tasks")
	{
		tasks.POST("", api.createTask)
		tasks.GET("", api.listTasks)
		tasks.POST("/assign", api.assignTask)
		tasks.GET("/assigned", api.listAssigned)
		tasks.GET("/urgent", api.listUrgent)
		tasks.GET("/:id", api.getTask)
		tasks.PUT("/:id", api.updateTask)
		tasks.DELETE("/:id", api.deleteTask)
		tasks.PATCH("/:id/status", api.updateStatus)
		tasks.POST("/:id/submit", api.submitTask)
		tasks.POST("/:id/review", api.reviewTask)
		tasks.POST("/:id/time", api.trackTime)
		tasks.GET("/:id/time", api.listTimeLogs)
		tasks.POST("/:id/attachments", api.addAttachment)
		tasks.GET("/:id/attachments/:attachmentID", api.downloadAttachment)
		tasks.DELETE("/:id/attachments/:attachmentID", api.removeAttachment)
		tasks.POST("/:id/comments", api.createComment)
		tasks.GET("/:id/comments", api.listComments)
	}

	commentsGroup := private.Group("/comments")
	{
		commentsGroup.GET("/:id", api.getComment)
		commentsGroup.PUT("/:id", api.updateComment)
		commentsGroup.DELETE("/:id", api.deleteComment)
	}

	teamsGroup := private.Group("/teams")
	{
		teamsGroup.POST("", api.createTeam)
		teamsGroup.GET("", api.listTeams)
		teamsGroup.GET("/:id", api.getTeam)
		teamsGroup.PUT("/:id", api.updateTeam)
		teamsGroup.DELETE("/:id", api.deleteTeam)
		teamsGroup.POST("/:id/members", api.addMember)
		teamsGroup.DELETE("/:id/members/:identifier", api.removeMember)
		teamsGroup.GET("/:id/tasks", api.listTeamTasks)
		teamsGroup.POST("/:id/leave", api.requestLeave)
		teamsGroup.GET("/:id/leave-requests", api.listLeaveRequests)
	}

	leave := private.Group("/leave-requests")
	{
		leave.POST("/:id/approve", api.approveLeave)
		leave.POST("/:id/reject", api.rejectLeave)
	}

	dash := private.Group("/dashboard")
	{
		dash.GET("", api.personalDashboard)
		dash.GET("/teams/:id", api.teamDashboard)
	}

	notifications := private.Group("/notifications")
	{
		notifications.GET("", api.listNotifications)
		notifications.PATCH("/read-all", api.markAllNotificationsRead)
		notifications.PATCH("/:id/read", api.markNotificationRead)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) health(ctx *gin.Context) {
	if err := api.svc.Store.Ping(ctx.Request.Context()); err != nil {
		log.WithError(err).Warn("health check failed")
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Storage unavailable"})
		return
	}
	respond(ctx, http.StatusOK, gin.H{"status": "ok"})
}
