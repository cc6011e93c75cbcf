package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/zxdlabs/shortlink/internal/app/codegen"
	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
)

var (
	// ErrEmptyLongLink rejects link creation/update without a destination.
	ErrEmptyLongLink = errors.New("long link must not be empty")

	// ErrShortLinkTaken signals that a caller-supplied code collides with an
	// existing short link. Caller-supplied codes are never retried.
	ErrShortLinkTaken = errors.New("short link is already taken")

	// ErrCodeSpaceExhausted signals that the generation retry budget ran out
	// before a free code was found. Callers may lengthen the code or wait.
	ErrCodeSpaceExhausted = errors.New("short code retry budget exhausted")

	// ErrInvalidStatus rejects status values outside active/frozen.
	ErrInvalidStatus = errors.New("status must be active or frozen")
)

// Expected population for the known-taken bloom cache.
const bloomEstimatedLinks = 1_000_000

// LinkService defines behaviour-level operations on links. It is the only
// component that creates, mutates or deletes Link rows.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id string) (*model.Link, error)
	ResolveByCode(ctx context.Context, code string) (*model.Link, error)
	ListLinks(ctx context.Context, limit, offset int, status string) ([]model.Link, error)
	ListLinksWithStats(ctx context.Context) ([]model.LinkWithStats, error)
	UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error)
	SetStatus(ctx context.Context, id, status string) (*model.Link, error)
	DeleteLink(ctx context.Context, id string) error
	LinkClicks(ctx context.Context, id string) (int64, error)
}

// LinkServiceConfig carries the registry knobs: the public domain short
// links are built on, the generated code length and the collision retry
// budget.
type LinkServiceConfig struct {
	Domain          string
	CodeLength      int
	MaxCodeAttempts int
}

type linkService struct {
	repo       repository.LinkRepository
	activities repository.ActivityRepository
	cfg        LinkServiceConfig

	// Known-taken short links seen by this process. A positive test lets the
	// create loop skip the resolution probe and regenerate immediately; the
	// database unique constraint stays authoritative either way.
	mu    sync.Mutex
	taken *bloom.BloomFilter
}

// NewLinkService returns a service implementation backed by the given
// repositories.
func NewLinkService(repo repository.LinkRepository, activities repository.ActivityRepository, cfg LinkServiceConfig) LinkService {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = codegen.DefaultLength
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = 10
	}
	return &linkService{
		repo:       repo,
		activities: activities,
		cfg:        cfg,
		taken:      bloom.NewWithEstimates(bloomEstimatedLinks, 0.01),
	}
}

// CreateLinkInput captures data required to create a link. Code is optional;
// when set it is used verbatim and collisions surface as ErrShortLinkTaken.
type CreateLinkInput struct {
	UserID      string
	LongLink    string
	Title       *string
	Description *string
	Tags        []string
	Code        string
}

// UpdateLinkInput captures fields that can be changed on an existing link.
// Nil fields are left unchanged.
type UpdateLinkInput struct {
	LongLink    *string
	Title       *string
	Description *string
	Tags        *[]string
	Code        *string
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if input.LongLink == "" {
		return nil, ErrEmptyLongLink
	}

	link := &model.Link{
		ID:          uuid.New().String(),
		UserID:      input.UserID,
		LongLink:    input.LongLink,
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
		Status:      model.StatusActive,
	}

	if input.Code != "" {
		link.ShortLink = s.buildShortLink(input.Code)
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrShortLinkExists) {
				return nil, ErrShortLinkTaken
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
		s.markTaken(link.ShortLink)
		return link, nil
	}

	for attempt := 0; attempt < s.cfg.MaxCodeAttempts; attempt++ {
		shortLink := s.buildShortLink(codegen.Generate(s.cfg.CodeLength))

		if s.maybeTaken(shortLink) {
			continue
		}
		if _, err := s.repo.GetByShortLink(ctx, shortLink); err == nil {
			s.markTaken(shortLink)
			continue
		} else if !errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("probe short link: %w", err)
		}

		link.ShortLink = shortLink
		err := s.repo.Create(ctx, link)
		if errors.Is(err, repository.ErrShortLinkExists) {
			// Lost a race with a concurrent create; regenerate.
			s.markTaken(shortLink)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		s.markTaken(shortLink)
		return link, nil
	}

	return nil, ErrCodeSpaceExhausted
}

func (s *linkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// ResolveByCode reconstructs the full short link for a raw code and performs
// an exact lookup. Short links created before the /s/ path convention lack
// the path segment, so a single legacy-format lookup follows a primary miss.
func (s *linkService) ResolveByCode(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByShortLink(ctx, s.buildShortLink(code))
	if errors.Is(err, repository.ErrLinkNotFound) {
		link, err = s.repo.GetByShortLink(ctx, s.cfg.Domain+"/"+code)
	}
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}
	s.markTaken(link.ShortLink)
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, limit, offset int, status string) ([]model.Link, error) {
	links, err := s.repo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) ListLinksWithStats(ctx context.Context) ([]model.LinkWithStats, error) {
	links, err := s.repo.ListWithStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links with stats: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error) {
	fields := map[string]interface{}{}

	if input.LongLink != nil {
		if *input.LongLink == "" {
			return nil, ErrEmptyLongLink
		}
		fields["long_link"] = *input.LongLink
	}
	if input.Title != nil {
		fields["title"] = *input.Title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Tags != nil {
		// Map updates bypass the struct serializer, so encode by hand for
		// the jsonb column.
		encoded, err := json.Marshal(*input.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		fields["tags"] = string(encoded)
	}
	if input.Code != nil {
		// A caller-supplied code follows the same conflict discipline as
		// creation: surface the collision, never retry on the caller's
		// behalf.
		fields["short_link"] = s.buildShortLink(*input.Code)
	}

	if len(fields) == 0 {
		return s.GetLink(ctx, id)
	}

	link, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrShortLinkExists) {
			return nil, ErrShortLinkTaken
		}
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.markTaken(link.ShortLink)
	return link, nil
}

// SetStatus writes only the status column. Repeating the same transition is
// a no-op, not an error.
func (s *linkService) SetStatus(ctx context.Context, id, status string) (*model.Link, error) {
	if status != model.StatusActive && status != model.StatusFrozen {
		return nil, ErrInvalidStatus
	}

	link, err := s.repo.Update(ctx, id, map[string]interface{}{"status": status})
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// LinkClicks exposes the activity count the action layer's deletion policy
// is built on.
func (s *linkService) LinkClicks(ctx context.Context, id string) (int64, error) {
	n, err := s.activities.CountByLink(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("count link clicks: %w", err)
	}
	return n, nil
}

func (s *linkService) buildShortLink(code string) string {
	return s.cfg.Domain + "/s/" + code
}

func (s *linkService) markTaken(shortLink string) {
	s.mu.Lock()
	s.taken.AddString(shortLink)
	s.mu.Unlock()
}

func (s *linkService) maybeTaken(shortLink string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken.TestString(shortLink)
}
