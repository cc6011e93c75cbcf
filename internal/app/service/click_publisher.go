package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/zxdlabs/shortlink/internal/app/model"
)

// ClickPublisher pushes click messages onto the JetStream click stream so
// persistence happens off the redirect path.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a click publisher over the given JetStream
// context.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish enqueues one click message.
func (p *ClickPublisher) Publish(msg model.ClickMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data)
	return err
}
