package server

import (
	"net/http"

	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := api.svc.Identity.Register(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, user)
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	session, err := api.svc.Identity.Login(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, session)
}

func (api *TaskAPI) refresh(ctx *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(ctx, &req) {
		return
	}
	session, err := api.svc.Identity.Refresh(ctx.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, session)
}

func (api *TaskAPI) logout(ctx *gin.Context) {
	if err := api.svc.Identity.Logout(ctx.Request.Context(), actorID(ctx)); err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Logged out"})
}

func (api *TaskAPI) getProfile(ctx *gin.Context) {
	user, err := api.svc.Identity.Profile(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, user)
}

func (api *TaskAPI) updateProfile(ctx *gin.Context) {
	var req models.UpdateProfileRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := api.svc.Identity.UpdateProfile(ctx.Request.Context(), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, user)
}
