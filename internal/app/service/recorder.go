package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
	infraprom "github.com/zxdlabs/shortlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Recorder appends click activity rows. It is the only component that
// creates Activity rows.
type Recorder struct {
	logger     *zap.Logger
	activities repository.ActivityRepository
}

// NewRecorder creates an activity recorder.
func NewRecorder(logger *zap.Logger, activities repository.ActivityRepository) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger, activities: activities}
}

// Insert persists one activity row and returns it. The foreign key on
// link_id is what guarantees the referenced Link exists at insert time.
func (r *Recorder) Insert(ctx context.Context, msg model.ClickMessage) (*model.Activity, error) {
	activity := &model.Activity{
		ID:          uuid.New().String(),
		LinkID:      msg.LinkID,
		IP:          msg.IP,
		Fingerprint: optional(msg.Fingerprint),
		Device:      optional(msg.Device),
		Origin:      optional(msg.Origin),
		ClickedAt:   msg.ClickedAt,
	}
	if activity.IP == "" {
		activity.IP = "unknown"
	}
	if activity.ClickedAt.IsZero() {
		activity.ClickedAt = time.Now()
	}

	if err := r.activities.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	infraprom.ClicksRecorded.Inc()
	return activity, nil
}

// Record is the redirect-path entry point: failures are logged and counted,
// never returned, so a stalled or broken store cannot fail a redirect.
// Recording runs to completion even when the inbound request context has
// already been cancelled.
func (r *Recorder) Record(ctx context.Context, msg model.ClickMessage) {
	if _, err := r.Insert(context.WithoutCancel(ctx), msg); err != nil {
		infraprom.ClickRecordFailures.Inc()
		r.logger.Error("failed to record click activity",
			zap.Error(err),
			zap.String("link_id", msg.LinkID),
		)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
