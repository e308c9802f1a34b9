package scheduling

import (
	"strings"
	"time"

	"zamanyonet-admin/internal/resource"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

type Task struct {
	resource.Base

	Title       string       `json:"title" binding:"required"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status" binding:"required,oneof=TODO IN_PROGRESS DONE"`
	Priority    TaskPriority `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssigneeID  string       `json:"assigneeId,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CompletedAt *time.Time   `json:"completedAt"`
}

func Tasks() *resource.Definition[Task] {
	return &resource.Definition[Task]{
		Kind:       "tasks",
		Table:      "tasks",
		EntityType: "Task",
		Label:      "Task",
		Filters: map[string]string{
			"status":     "status",
			"priority":   "priority",
			"assigneeId": "assigneeId",
		},
		Prepare: prepareTask,
	}
}

func prepareTask(old, next *Task, now time.Time) error {
	next.Title = strings.TrimSpace(next.Title)
	if next.Title == "" {
		return resource.Invalid("title", "must not be blank")
	}
	if next.Priority == "" {
		next.Priority = PriorityMedium
	}

	switch {
	case next.Status != TaskDone:
		next.CompletedAt = nil
	case old != nil && old.Status == TaskDone:
		next.CompletedAt = old.CompletedAt
	default:
		done := now
		next.CompletedAt = &done
	}
	return nil
}
