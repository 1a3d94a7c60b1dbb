package server

import (
	"net/http"

	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func (api *TaskAPI) createTeam(ctx *gin.Context) {
	var req models.CreateTeamRequest
	if !bindJSON(ctx, &req) {
		return
	}
	team, err := api.svc.Teams.CreateTeam(ctx.Request.Context(), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, team)
}

func (api *TaskAPI) listTeams(ctx *gin.Context) {
	mine, err := api.svc.Teams.ListMyTeams(ctx.Request.Context(), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, mine)
}

func (api *TaskAPI) getTeam(ctx *gin.Context) {
	team, err := api.svc.Teams.GetTeam(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, team)
}

func (api *TaskAPI) updateTeam(ctx *gin.Context) {
	var req models.UpdateTeamRequest
	if !bindJSON(ctx, &req) {
		return
	}
	team, err := api.svc.Teams.UpdateTeam(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, team)
}

func (api *TaskAPI) deleteTeam(ctx *gin.Context) {
	if err := api.svc.Teams.DeleteTeam(ctx.Request.Context(), ctx.Param("id"), actorID(ctx)); err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": "Team deleted"})
}

func (api *TaskAPI) addMember(ctx *gin.Context) {
	var req models.AddMemberRequest
	if !bindJSON(ctx, &req) {
		return
	}
	team, user, err := api.svc.Teams.AddMember(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), req.Identifier)
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"team": team, "user": user})
}

func (api *TaskAPI) removeMember(ctx *gin.Context) {
	team, user, err := api.svc.Teams.RemoveMember(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), ctx.Param("identifier"))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"team": team, "user": user})
}

func (api *TaskAPI) listTeamTasks(ctx *gin.Context) {
	tasks, err := api.svc.Tasks.ListTeamTasks(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, tasks)
}

func (api *TaskAPI) requestLeave(ctx *gin.Context) {
	req, created, err := api.svc.Teams.RequestLeave(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(ctx, status, req)
}

func (api *TaskAPI) listLeaveRequests(ctx *gin.Context) {
	reqs, err := api.svc.Teams.LeaveRequests(ctx.Request.Context(), ctx.Param("id"), actorID(ctx), ctx.Query("status"))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, reqs)
}

func (api *TaskAPI) approveLeave(ctx *gin.Context) {
	req, err := api.svc.Teams.ApproveLeave(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, req)
}

func (api *TaskAPI) rejectLeave(ctx *gin.Context) {
	req, err := api.svc.Teams.RejectLeave(ctx.Request.Context(), ctx.Param("id"), actorID(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, req)
}
