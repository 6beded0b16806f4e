package race

import (
	"time"

	"github.com/google/uuid"
)

// MaxRecordsPerTeam is the default number of time records a team may hold.
const MaxRecordsPerTeam = 15

type TimeRecord struct {
	ID           int64     `db:"id" json:"id"`
	RecordID     uuid.UUID `db:"record_id" json:"recordId"`
	TeamID       int64     `db:"team_id" json:"teamId"`
	TotalMs      int64     `db:"total_ms" json:"totalMs"`
	Hours        int64     `db:"hours" json:"hours"`
	Minutes      int64     `db:"minutes" json:"minutes"`
	Seconds      int64     `db:"seconds" json:"seconds"`
	Milliseconds int64     `db:"milliseconds" json:"milliseconds"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// IsAbsence reports whether the record marks a participant who did not finish.
func (r *TimeRecord) IsAbsence() bool {
	return r.TotalMs == 0
}
