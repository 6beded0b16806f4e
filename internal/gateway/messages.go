package gateway

import (
	"time"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/service"
)

// Message kinds exchanged over a judge session.
const (
	KindSubmitSingle          = "submit_single"
	KindSubmitBatch           = "submit_batch"
	KindConnectionEstablished = "connection_established"
	KindRecordSaved           = "record_saved"
	KindBatchResult           = "batch_result"
	KindError                 = "error"
)

// request is an inbound judge message. TeamID defaults to the judge's assigned team.
// A submit_single carries its record fields at the top level; a submit_batch lists them
// under records.
type request struct {
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
	TeamID    int64  `json:"teamId,omitempty"`
	service.RecordInput
	Records []service.RecordInput `json:"records,omitempty"`
}

type judgeInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type connectionEstablished struct {
	Kind        string        `json:"kind"`
	Judge       judgeInfo     `json:"judge"`
	Team        race.Team     `json:"team"`
	MaxRecords  int           `json:"maxRecords"`
	Competition race.Snapshot `json:"competition"`
}

type recordSaved struct {
	Kind      string           `json:"kind"`
	RequestID string           `json:"requestId,omitempty"`
	Record    *race.TimeRecord `json:"record"`
	Duplicate bool             `json:"duplicate"`
}

type batchResult struct {
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
	*service.BatchResult
}

type errorMessage struct {
	Kind      string         `json:"kind"`
	RequestID string         `json:"requestId,omitempty"`
	Code      apperrors.Code `json:"code"`
	Reason    string         `json:"reason"`
}

// lifecycleNotice relays a competition_started or competition_stopped event.
type lifecycleNotice struct {
	Kind          string    `json:"kind"`
	CompetitionID int64     `json:"competitionId"`
	Name          string    `json:"name"`
	Running       bool      `json:"running"`
	OccurredAt    time.Time `json:"occurredAt"`
}
