package storage

import "time"

// MissionStatus enumerates the mission lifecycle states.
type MissionStatus string

const (
	MissionPending        MissionStatus = "pending"
	MissionRunning        MissionStatus = "running"
	MissionSuccess        MissionStatus = "success"
	MissionPartialSuccess MissionStatus = "partial_success"
	MissionFailed         MissionStatus = "failed"
	MissionCancelled      MissionStatus = "cancelled"
)

// Mission is the runtime row shape for the missions table.
type Mission struct {
	ID             string
	Goal           string
	Status         MissionStatus
	IdempotencyKey *string
	Result         []byte
	ErrorMessage   *string
	IterationCount int
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// TaskStatus enumerates per-task lifecycle states.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Task is the runtime row shape for the tasks table.
type Task struct {
	ID           string
	MissionID    string
	Ordinal      int
	Node         string
	Status       TaskStatus
	Input        []byte
	Output       []byte
	ErrorMessage *string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// MissionEvent is the runtime row shape for the mission_events table.
type MissionEvent struct {
	ID        string
	MissionID string
	Sequence  int
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// PlanHash is the runtime row shape for the plan_hashes table.
type PlanHash struct {
	ID        string
	MissionID string
	Iteration int
	Hash      string
	CreatedAt time.Time
}

// OutboxStatus enumerates outbox entry processing states.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxProcessed OutboxStatus = "processed"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEntry is the runtime row shape for the outbox_entries table.
type OutboxEntry struct {
	ID          string
	MissionID   string
	Topic       string
	Payload     []byte
	Status      OutboxStatus
	RetryCount  int
	LastError   *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// IdempotencyState enumerates idempotency record states.
type IdempotencyState string

const (
	IdempotencyProcessing IdempotencyState = "processing"
	IdempotencyCached     IdempotencyState = "cached"
)

// IdempotencyRecord is the runtime row shape for the idempotency_records table.
type IdempotencyRecord struct {
	Key             string
	Method          string
	Path            string
	State           IdempotencyState
	ResponseStatus  int
	ResponseBody    []byte
	ResponseHeaders []byte
	CreatedAt       time.Time
	ExpiresAt       time.Time
}
