package service

import (
	"context"
	"errors"
	"testing"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
)

// stubLinks overrides only the resolution path; the embedded interface
// panics if anything else is called.
type stubLinks struct {
	LinkService
	resolveFn func(ctx context.Context, code string) (*model.Link, error)
}

func (s *stubLinks) ResolveByCode(ctx context.Context, code string) (*model.Link, error) {
	return s.resolveFn(ctx, code)
}

func newTestResolver(links LinkService, activities repository.ActivityRepository) *Resolver {
	r := NewResolver(nil, links, NewRecorder(nil, activities), nil)
	// Run recording inline so assertions see the insert.
	r.dispatch = func(fn func()) { fn() }
	return r
}

func TestResolver_NotFound(t *testing.T) {
	links := &stubLinks{resolveFn: func(ctx context.Context, code string) (*model.Link, error) {
		return nil, repository.ErrLinkNotFound
	}}
	inserts := 0
	activities := &mockActivityRepository{
		createFn: func(ctx context.Context, activity *model.Activity) error {
			inserts++
			return nil
		},
	}

	resolution, err := newTestResolver(links, activities).Resolve(context.Background(), "nope", ClickInfo{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolution.Outcome != OutcomeNotFound {
		t.Fatalf("expected OutcomeNotFound, got %v", resolution.Outcome)
	}
	if inserts != 0 {
		t.Fatalf("not-found must not record activity, saw %d inserts", inserts)
	}
}

func TestResolver_Frozen(t *testing.T) {
	links := &stubLinks{resolveFn: func(ctx context.Context, code string) (*model.Link, error) {
		return &model.Link{ID: "l1", LongLink: "https://example.org", Status: model.StatusFrozen}, nil
	}}
	inserts := 0
	activities := &mockActivityRepository{
		createFn: func(ctx context.Context, activity *model.Activity) error {
			inserts++
			return nil
		},
	}

	resolution, err := newTestResolver(links, activities).Resolve(context.Background(), "cold", ClickInfo{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolution.Outcome != OutcomeFrozen {
		t.Fatalf("expected OutcomeFrozen, got %v", resolution.Outcome)
	}
	if inserts != 0 {
		t.Fatalf("frozen must not record activity, saw %d inserts", inserts)
	}
}

func TestResolver_ActiveRecordsExactlyOneClick(t *testing.T) {
	links := &stubLinks{resolveFn: func(ctx context.Context, code string) (*model.Link, error) {
		return &model.Link{ID: "l1", LongLink: "https://example.org/page", Status: model.StatusActive}, nil
	}}
	var recorded []*model.Activity
	activities := &mockActivityRepository{
		createFn: func(ctx context.Context, activity *model.Activity) error {
			recorded = append(recorded, activity)
			return nil
		},
	}

	resolver := newTestResolver(links, activities)
	resolution, err := resolver.Resolve(context.Background(), "abc123", ClickInfo{
		IP:          "203.0.113.7",
		Device:      "mobile",
		Origin:      "https://news.example",
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolution.Outcome != OutcomeRedirect {
		t.Fatalf("expected OutcomeRedirect, got %v", resolution.Outcome)
	}
	if resolution.LongLink != "https://example.org/page" {
		t.Fatalf("unexpected redirect target %q", resolution.LongLink)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected exactly one activity row, got %d", len(recorded))
	}

	activity := recorded[0]
	if activity.LinkID != "l1" {
		t.Fatalf("activity references wrong link %q", activity.LinkID)
	}
	if activity.IP != "203.0.113.7" {
		t.Fatalf("unexpected ip %q", activity.IP)
	}
	if activity.Device == nil || *activity.Device != "mobile" {
		t.Fatalf("unexpected device %v", activity.Device)
	}
	if activity.Fingerprint == nil || *activity.Fingerprint != "fp-1" {
		t.Fatalf("unexpected fingerprint %v", activity.Fingerprint)
	}
	if activity.ClickedAt.IsZero() {
		t.Fatal("expected clicked_at to be stamped")
	}
}

func TestResolver_RecordFailureDoesNotBlockRedirect(t *testing.T) {
	links := &stubLinks{resolveFn: func(ctx context.Context, code string) (*model.Link, error) {
		return &model.Link{ID: "l1", LongLink: "https://example.org", Status: model.StatusActive}, nil
	}}
	activities := &mockActivityRepository{
		createFn: func(ctx context.Context, activity *model.Activity) error {
			return errors.New("connection refused")
		},
	}

	resolution, err := newTestResolver(links, activities).Resolve(context.Background(), "abc123", ClickInfo{})
	if err != nil {
		t.Fatalf("recording failure must be swallowed, got %v", err)
	}
	if resolution.Outcome != OutcomeRedirect {
		t.Fatalf("expected OutcomeRedirect, got %v", resolution.Outcome)
	}
}

func TestResolver_TransientLookupErrorPropagates(t *testing.T) {
	lookupErr := errors.New("connection timeout")
	links := &stubLinks{resolveFn: func(ctx context.Context, code string) (*model.Link, error) {
		return nil, lookupErr
	}}

	_, err := newTestResolver(links, &mockActivityRepository{}).Resolve(context.Background(), "abc123", ClickInfo{})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error to propagate, got %v", err)
	}
}
