package race

import "time"

type CompetitionStatus string

const (
	StatusScheduled CompetitionStatus = "scheduled"
	StatusRunning   CompetitionStatus = "running"
	StatusFinished  CompetitionStatus = "finished"
)

type Category string

const (
	CategoryStudents     Category = "students"
	CategoryInterFaculty Category = "inter_faculty"
)

type Competition struct {
	ID          int64             `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	Category    Category          `db:"category" json:"category"`
	ScheduledAt time.Time         `db:"scheduled_at" json:"scheduledAt"`
	IsActive    bool              `db:"is_active" json:"isActive"`
	Status      CompetitionStatus `db:"status" json:"status"`
	StartedAt   *time.Time        `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
}

// Start moves a scheduled competition to running. It reports false and leaves the
// competition untouched for any other status.
func (c *Competition) Start(now time.Time) bool {
	if c.Status != StatusScheduled {
		return false
	}
	c.Status = StatusRunning
	c.StartedAt = &now
	return true
}

// Stop moves a running competition to finished. Finished is terminal.
func (c *Competition) Stop(now time.Time) bool {
	if c.Status != StatusRunning {
		return false
	}
	c.Status = StatusFinished
	c.FinishedAt = &now
	return true
}

func (c *Competition) IsRunning() bool {
	return c.Status == StatusRunning
}

func (c *Competition) StatusText() string {
	switch c.Status {
	case StatusRunning:
		return "Running"
	case StatusFinished:
		return "Finished"
	case StatusScheduled:
		return "Scheduled"
	default:
		return "Unknown"
	}
}

// Snapshot is the view of a competition sent to judges when they connect.
type Snapshot struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Category    Category          `json:"category"`
	IsActive    bool              `json:"isActive"`
	Running     bool              `json:"running"`
	Status      CompetitionStatus `json:"status"`
	StatusText  string            `json:"statusText"`
	ScheduledAt time.Time         `json:"scheduledAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
}

func (c *Competition) Snapshot() Snapshot {
	return Snapshot{
		ID:          c.ID,
		Name:        c.Name,
		Category:    c.Category,
		IsActive:    c.IsActive,
		Running:     c.IsRunning(),
		Status:      c.Status,
		StatusText:  c.StatusText(),
		ScheduledAt: c.ScheduledAt,
		StartedAt:   c.StartedAt,
		FinishedAt:  c.FinishedAt,
	}
}
