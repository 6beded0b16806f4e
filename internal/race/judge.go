package race

import (
	"strings"
	"time"
)

type Judge struct {
	ID            int64     `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	FirstName     string    `db:"first_name" json:"firstName"`
	LastName      string    `db:"last_name" json:"lastName"`
	CompetitionID int64     `db:"competition_id" json:"competitionId"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

func (j *Judge) FullName() string {
	return strings.TrimSpace(j.FirstName + " " + j.LastName)
}

// Team is a competing unit. Its competition is the competition of its judge.
type Team struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Number  int    `db:"number" json:"number"`
	JudgeID int64  `db:"judge_id" json:"judgeId"`
}
