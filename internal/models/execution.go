package models

import "time"

type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
)

// ExecutionOutcome is the tri-state success of a run. It stays pending until
// the run completes.
type ExecutionOutcome string

const (
	OutcomePending   ExecutionOutcome = "pending"
	OutcomeSucceeded ExecutionOutcome = "succeeded"
	OutcomeFailed    ExecutionOutcome = "failed"
)

// ExecutionEntity is the durable record of one attempt to run a job.
type ExecutionEntity struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	JobID     *uint            `gorm:"index" json:"job_id"`
	StartedAt time.Time        `gorm:"not null;index" json:"started_at"`
	Status    ExecutionStatus  `gorm:"type:varchar(20);not null" json:"status"`
	EndedAt   *time.Time       `json:"ended_at"`
	Success   ExecutionOutcome `gorm:"type:varchar(20);not null" json:"success"`
	Result    string           `gorm:"type:text" json:"result"`
}

func (ExecutionEntity) TableName() string {
	return "executions"
}

type GetExecutionParam struct {
	JobID  *uint            `json:"job_id"`
	Status *ExecutionStatus `json:"status"`
	Limit  int              `json:"limit"`
}
