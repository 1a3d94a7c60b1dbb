package models

import "time"

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6,max=100"`
}

type CreateTaskRequest struct {
	Title               string     `json:"title" validate:"required,min=1,max=200"`
	Description         string     `json:"description" validate:"omitempty,max=2000"`
	Priority            Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status              TaskStatus `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Deadline            *time.Time `json:"deadline"`
	UrgentBeforeMinutes *int       `json:"urgentBeforeMinutes" validate:"omitempty,gt=0"`
}

type AssignTaskRequest struct {
	Title               string     `json:"title" validate:"required,min=1,max=200"`
	Description         string     `json:"description" validate:"omitempty,max=2000"`
	Priority            Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline            *time.Time `json:"deadline"`
	UrgentBeforeMinutes *int       `json:"urgentBeforeMinutes" validate:"omitempty,gt=0"`
	TeamID              string     `json:"teamId" validate:"required"`
	UserID              string     `json:"userId" validate:"required"`
}

// UpdateTaskRequest is a partial patch; nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title               *string     `json:"title" validate:"omitempty,min=1,max=200"`
	Description         *string     `json:"description" validate:"omitempty,max=2000"`
	Priority            *Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status              *TaskStatus `json:"status"`
	Deadline            *time.Time  `json:"deadline"`
	UrgentBeforeMinutes *int        `json:"urgentBeforeMinutes" validate:"omitempty,gt=0"`
}

type UpdateStatusRequest struct {
	Status TaskStatus `json:"status" validate:"required"`
}

type SubmitTaskRequest struct {
	Note string `json:"note" validate:"omitempty,max=1000"`
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewTaskRequest struct {
	Action ReviewAction `json:"action" validate:"required"`
	Note   string       `json:"note" validate:"omitempty,max=1000"`
}

// TrackTimeRequest uses a float so that NaN/Inf/fractional input can be
// rejected with a precise message instead of a bind error.
type TrackTimeRequest struct {
	Minutes   float64    `json:"minutes"`
	Note      string     `json:"note" validate:"omitempty,max=500"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

type TaskFilter struct {
	Status   TaskStatus `form:"status" validate:"omitempty,oneof=pending in-progress submitted completed"`
	Priority Priority   `form:"priority" validate:"omitempty,oneof=low medium high"`
}

type CreateTeamRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=100"`
	Bio            string `json:"bio" validate:"omitempty,max=500"`
	ProfilePicture string `json:"profilePicture" validate:"omitempty,max=500"`
}

type UpdateTeamRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,max=500"`
}

type AddMemberRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type CommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}
