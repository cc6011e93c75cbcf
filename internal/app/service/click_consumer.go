package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zxdlabs/shortlink/internal/app/model"
	"go.uber.org/zap"
)

// ClickConsumer drains the JetStream click stream and persists each message
// as an Activity row through the Recorder.
type ClickConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	recorder *Recorder
	stopCh   chan struct{}
}

// NewClickConsumer creates a click consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, recorder *Recorder) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{
		js:       js,
		logger:   logger,
		recorder: recorder,
		stopCh:   make(chan struct{}),
	}
}

// Start ensures the stream and durable consumer exist and begins draining in
// a background goroutine.
func (c *ClickConsumer) Start() error {
	if _, err := c.js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create click stream: %w", err)
		}
	}

	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create click consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to click stream: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop halts the consume loop.
func (c *ClickConsumer) Stop() {
	close(c.stopCh)
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopCh:
			c.logger.Info("click consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch click messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var click model.ClickMessage
			if err := json.Unmarshal(msg.Data, &click); err != nil {
				c.logger.Error("failed to unmarshal click message", zap.Error(err))
				msg.Nak()
				continue
			}

			if _, err := c.recorder.Insert(ctx, click); err != nil {
				c.logger.Error("failed to store click activity",
					zap.String("link_id", click.LinkID),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("click activity stored",
				zap.String("link_id", click.LinkID),
				zap.String("ip", click.IP),
				zap.Time("clicked_at", click.ClickedAt),
			)

			msg.Ack()
		}
	}
}
