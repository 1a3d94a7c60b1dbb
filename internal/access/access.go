// Package access holds the authorization decisions for tasks and teams.
//
// Every function is pure: callers load the task and, for team tasks, its
// team, then ask one question here. Nothing in this package touches a
// store, so each decision can be tested from snapshots alone.
package access

import (
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
)

// IsTeamManager reports whether actorID owns team.
func IsTeamManager(team *models.Team, actorID string) bool {
	return team != nil && actorID != "" && team.ManagerID == actorID
}

// IsTeamMember reports whether actorID is in team's member set. The
// manager is not a member.
func IsTeamMember(team *models.Team, actorID string) bool {
	return team != nil && actorID != "" && team.HasMember(actorID)
}

// IsTeamParticipant is true for the manager and every member.
func IsTeamParticipant(team *models.Team, actorID string) bool {
	return IsTeamManager(team, actorID) || IsTeamMember(team, actorID)
}

// CanViewTask: the owner always; for team tasks also the team's manager
// and members. team may be nil for personal tasks, and is ignored unless
// it is the task's own team.
func CanViewTask(task *models.Task, team *models.Team, actorID string) bool {
	if task == nil || actorID == "" {
		return false
	}
	if task.UserID == actorID {
		return true
	}
	if task.TeamID == nil || team == nil || team.ID != *task.TeamID {
		return false
	}
	return IsTeamParticipant(team, actorID)
}

// CanViewTaskOrErr is CanViewTask as the first gate of a read or write.
func CanViewTaskOrErr(task *models.Task, team *models.Team, actorID string) error {
	if !CanViewTask(task, team, actorID) {
		return errors.AccessDenied("You are not allowed to access this task")
	}
	return nil
}

// CanCommentOrView shares the visibility rule: whoever can see a task can
// discuss it.
func CanCommentOrView(task *models.Task, team *models.Team, actorID string) bool {
	return CanViewTask(task, team, actorID)
}

// CanDeleteTask: the owner (who is also the assignee of an assigned
// task), or for assigned tasks the assigner or the team's manager.
func CanDeleteTask(task *models.Task, team *models.Team, actorID string) bool {
	if task == nil || actorID == "" {
		return false
	}
	if task.UserID == actorID {
		return true
	}
	if task.AssignedBy == nil {
		return false
	}
	if *task.AssignedBy == actorID {
		return true
	}
	return task.TeamID != nil && team != nil && team.ID == *task.TeamID && IsTeamManager(team, actorID)
}

// CanAssign: only the manager, and only to a current member.
func CanAssign(team *models.Team, actorID, targetUserID string) bool {
	return IsTeamManager(team, actorID) && IsTeamMember(team, targetUserID)
}

// AssignErr is CanAssign as an error, naming the rule that failed.
func AssignErr(team *models.Team, actorID, targetUserID string) error {
	if CanAssign(team, actorID, targetUserID) {
		return nil
	}
	if !IsTeamManager(team, actorID) {
		return errors.AccessDenied("Only the team manager can assign tasks")
	}
	return errors.AccessDenied("Can only assign tasks to team members")
}

// CanChangeStatus: the owner, and for assigned tasks also the assigner.
// Other team participants may edit content but not move the status.
func CanChangeStatus(task *models.Task, actorID string) bool {
	if task == nil || actorID == "" {
		return false
	}
	return task.UserID == actorID || (task.AssignedBy != nil && *task.AssignedBy == actorID)
}

// CanSelfComplete reports whether actorID may move task straight to
// completed. Assigned work has to go through submit and review when the
// assignee is the one asking.
func CanSelfComplete(task *models.Task, actorID string) bool {
	return !(task.IsAssigned() && task.UserID == actorID)
}

// CanSubmit: only the task's current owner.
func CanSubmit(task *models.Task, actorID string) bool {
	return task != nil && actorID != "" && task.UserID == actorID
}

// CanReview: only the assigner.
func CanReview(task *models.Task, actorID string) bool {
	return task != nil && task.AssignedBy != nil && *task.AssignedBy == actorID
}
