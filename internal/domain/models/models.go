package models

import (
	"slices"
	"time"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Team struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ManagerID      string    `json:"managerId"`
	Members        []string  `json:"members"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (t *Team) HasMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusSubmitted  TaskStatus = "submitted"
	StatusCompleted  TaskStatus = "completed"
	// StatusArchived is accepted by no workflow path; it exists only so
	// the status validator can name it in its rejection.
	StatusArchived TaskStatus = "archived"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities for deadline tie-breaks: high sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

type Attachment struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Task is owned by UserID. AssignedBy and TeamID are both set for tasks
// handed out by a team manager and both nil for personal tasks.
type Task struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Priority            Priority     `json:"priority"`
	Status              TaskStatus   `json:"status"`
	Deadline            *time.Time   `json:"deadline,omitempty"`
	UserID              string       `json:"userId"`
	AssignedBy          *string      `json:"assignedBy,omitempty"`
	TeamID              *string      `json:"teamId,omitempty"`
	TimeSpent           int          `json:"timeSpent"`
	UrgentBeforeMinutes *int         `json:"urgentBeforeMinutes,omitempty"`
	Attachments         []Attachment `json:"attachments"`
	SubmissionNote      *string      `json:"submissionNote,omitempty"`
	ReviewNote          *string      `json:"reviewNote,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

func (t *Task) IsAssigned() bool { return t.AssignedBy != nil }

// Transition describes a compare-and-swap on a task's status. The write
// only happens while the stored status still equals From.
type Transition struct {
	From           TaskStatus
	To             TaskStatus
	SubmissionNote *string
	ReviewNote     *string
}

type TimeLog struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	UserID    string     `json:"userId"`
	Duration  int        `json:"duration"`
	Note      string     `json:"note"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

type TeamLeaveRequest struct {
	ID        string      `json:"id"`
	TeamID    string      `json:"teamId"`
	UserID    string      `json:"userId"`
	Status    LeaveStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

type NotificationType string

const (
	NotifyTaskAssigned  NotificationType = "task_assigned"
	NotifyTaskSubmitted NotificationType = "task_submitted"
	NotifyTaskApproved  NotificationType = "task_approved"
	NotifyTaskRejected  NotificationType = "task_rejected"
	NotifyCommentAdded  NotificationType = "comment_added"
	NotifyMemberAdded   NotificationType = "member_added"
	NotifyLeaveRequest  NotificationType = "leave_request"
	NotifyLeaveApproved NotificationType = "leave_approved"
	NotifyLeaveRejected NotificationType = "leave_rejected"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	SenderID    *string          `json:"senderId,omitempty"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Link        *string          `json:"link,omitempty"`
	IsRead      bool             `json:"isRead"`
	IsUrgent    bool             `json:"isUrgent"`
	CreatedAt   time.Time        `json:"createdAt"`
}
