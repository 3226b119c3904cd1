package types

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Status tracks the progress of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID string `json:"_id" db:"id" bson:"_id"`

	// Title is a short, non-empty summary.
	Title string `json:"title" db:"title" bson:"title"`

	// Description is the non-empty body of the task.
	Description string `json:"description" db:"description" bson:"description"`

	// DueDate is the optional deadline.
	DueDate *time.Time `json:"dueDate" db:"due_date" bson:"dueDate,omitempty"`

	Priority  Priority `json:"priority" db:"priority" bson:"priority"`
	Status    Status   `json:"status" db:"status" bson:"status"`
	Completed bool     `json:"completed" db:"completed" bson:"completed"`

	// UserID references the owner. It is set once at creation.
	UserID string `json:"user" db:"user_id" bson:"user"`

	// Attachment is the optional uploaded PDF.
	Attachment *Attachment `json:"attachment,omitempty" db:"-" bson:"attachment,omitempty"`

	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// Attachment describes a file stored in object storage for a task.
type Attachment struct {
	Key         string `json:"key" bson:"key"`
	Filename    string `json:"filename" bson:"filename"`
	Size        int64  `json:"size" bson:"size"`
	ContentType string `json:"contentType" bson:"contentType"`
}

// TaskPatch carries the fields of a partial task update. Nil fields are left
// untouched. ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *Priority
	Status       *Status
	Completed    *bool
}

// Apply copies the present fields of p onto t. The owner is never changed.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
