// Package pubsub fans lifecycle events out to live judge sessions. Delivery is
// at-least-once to subscribers present at publish time; there is no history.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	CompetitionStarted EventType = "competition_started"
	CompetitionStopped EventType = "competition_stopped"
)

type Event struct {
	Type          EventType `json:"type"`
	CompetitionID int64     `json:"competitionId"`
	Name          string    `json:"name"`
	Running       bool      `json:"running"`
	OccurredAt    time.Time `json:"occurredAt"`
}

var ErrClosed = errors.New("pubsub: broker closed")

// Broker is the publish/subscribe capability used by the lifecycle service and the
// gateway.
type Broker interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(topic string) (*Subscription, error)
}

func JudgeTopic(judgeID int64) string {
	return fmt.Sprintf("judge:%d", judgeID)
}

func CompetitionTopic(competitionID int64) string {
	return fmt.Sprintf("competition:%d", competitionID)
}
