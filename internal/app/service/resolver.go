package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
	infraprom "github.com/zxdlabs/shortlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Outcome is the terminal state of one redirect resolution.
type Outcome int

const (
	// OutcomeNotFound means no link owns the code; callers redirect to the
	// landing page.
	OutcomeNotFound Outcome = iota
	// OutcomeFrozen means the link exists but redirection is blocked; no
	// click is recorded.
	OutcomeFrozen
	// OutcomeRedirect means the link is active; exactly one click is
	// recorded per resolution.
	OutcomeRedirect
)

// Resolution is the decision for one inbound code.
type Resolution struct {
	Outcome  Outcome
	LongLink string
	Link     *model.Link
}

// ClickInfo carries the request attributes captured into the activity row.
type ClickInfo struct {
	IP          string
	Fingerprint string
	Device      string
	Origin      string
}

// Resolver turns an inbound short code into a redirect decision and, on the
// active path only, dispatches click recording. It holds no per-request
// state.
type Resolver struct {
	logger    *zap.Logger
	links     LinkService
	recorder  *Recorder
	publisher *ClickPublisher

	// dispatch decouples recording from the redirect response so a stalled
	// write can never hold the redirect hostage. Tests swap in a synchronous
	// version.
	dispatch func(fn func())
}

// NewResolver creates a redirect resolver. publisher may be nil, in which
// case clicks are recorded directly instead of through JetStream.
func NewResolver(logger *zap.Logger, links LinkService, recorder *Recorder, publisher *ClickPublisher) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:    logger,
		links:     links,
		recorder:  recorder,
		publisher: publisher,
		dispatch:  func(fn func()) { go fn() },
	}
}

// Resolve runs the per-request state machine: lookup, status gate, record.
// Transient lookup failures propagate; recording failures never do.
func (r *Resolver) Resolve(ctx context.Context, code string, click ClickInfo) (Resolution, error) {
	link, err := r.links.ResolveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			infraprom.RedirectsTotal.WithLabelValues(infraprom.OutcomeNotFound).Inc()
			return Resolution{Outcome: OutcomeNotFound}, nil
		}
		return Resolution{}, fmt.Errorf("resolve redirect: %w", err)
	}

	if link.Status == model.StatusFrozen {
		infraprom.RedirectsTotal.WithLabelValues(infraprom.OutcomeFrozen).Inc()
		return Resolution{Outcome: OutcomeFrozen, Link: link}, nil
	}

	msg := model.ClickMessage{
		LinkID:      link.ID,
		IP:          click.IP,
		Fingerprint: click.Fingerprint,
		Device:      click.Device,
		Origin:      click.Origin,
		ClickedAt:   time.Now(),
	}
	recordCtx := context.WithoutCancel(ctx)
	r.dispatch(func() { r.recordClick(recordCtx, msg) })

	infraprom.RedirectsTotal.WithLabelValues(infraprom.OutcomeRedirect).Inc()
	return Resolution{Outcome: OutcomeRedirect, LongLink: link.LongLink, Link: link}, nil
}

func (r *Resolver) recordClick(ctx context.Context, msg model.ClickMessage) {
	if r.publisher != nil {
		err := r.publisher.Publish(msg)
		if err == nil {
			return
		}
		r.logger.Error("failed to publish click event, recording directly",
			zap.Error(err),
			zap.String("link_id", msg.LinkID),
		)
	}
	r.recorder.Record(ctx, msg)
}
