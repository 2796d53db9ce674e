package entity

import (
	"database/sql"
	"time"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Task struct {
	ID          string
	UserID      uint64
	Title       string
	Description sql.NullString
	DueDate     sql.NullTime
	Priority    TaskPriority
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
