package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fystack/walletstream/pkg/model"
)

const activitySubjectSuffix = ".activity"

type ActivityEvent struct {
	Type      string             `json:"type"`
	Data      *model.ActivityLog `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

// Emitter fans persisted activity rows out to subscribed viewers. Publishing
// happens after persistence and is fire-and-forget: a failed publish must
// never fail the enclosing event's processing.
type Emitter interface {
	EmitActivity(activity *model.ActivityLog) error
	Close()
}

type natsEmitter struct {
	nc      *nats.Conn
	subject string
}

func NewEmitter(nc *nats.Conn, subjectPrefix string) Emitter {
	return &natsEmitter{
		nc:      nc,
		subject: subjectPrefix + activitySubjectSuffix,
	}
}

func (e *natsEmitter) EmitActivity(activity *model.ActivityLog) error {
	data, err := json.Marshal(ActivityEvent{
		Type:      "activity",
		Data:      activity,
		Timestamp: time.Now().UTC().Unix(),
	})
	if err != nil {
		return err
	}
	return e.nc.Publish(e.subject, data)
}

func (e *natsEmitter) Close() {
	if e.nc != nil {
		e.nc.Close()
	}
}
