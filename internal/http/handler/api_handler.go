package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
	"github.com/zxdlabs/shortlink/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by the management API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Analytics   service.AnalyticsService
}

// APIHandler implements the management API: link CRUD, status transitions,
// the activity-protected delete policy and the analytics read endpoints.
type APIHandler struct {
	logger    *zap.Logger
	links     service.LinkService
	analytics service.AnalyticsService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		links:     deps.LinkService,
		analytics: deps.Analytics,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/stats", h.GlobalStats)

		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Patch("/:id/status", h.SetStatus)
			links.Delete("/:id", h.DeleteLink)
			links.Get("/:id/analytics", h.LinkAnalytics)
			links.Get("/:id/activities", h.ListActivities)
		}
	}
}

// LinkResponse is the wire form of a link.
type LinkResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LongLink    string    `json:"long_link"`
	ShortLink   string    `json:"short_link"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Status      string    `json:"status"`
	Clicks      *int64    `json:"clicks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		UserID:      link.UserID,
		LongLink:    link.LongLink,
		ShortLink:   link.ShortLink,
		Title:       link.Title,
		Description: link.Description,
		Tags:        link.Tags,
		Status:      link.Status,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	UserID      string   `json:"user_id"`
	LongLink    string   `json:"long_link"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Code        string   `json:"code,omitempty"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link, err := h.links.CreateLink(userContext(c), service.CreateLinkInput{
		UserID:      req.UserID,
		LongLink:    req.LongLink,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Code:        req.Code,
	})
	if err != nil {
		return h.linkError(c, err, "failed to create link")
	}

	return c.Status(fiber.StatusCreated).JSON(linkResponse(link))
}

// ListLinks handles GET /api/links. With ?stats=true each link carries its
// click count.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	ctx := userContext(c)

	if c.QueryBool("stats") {
		links, err := h.links.ListLinksWithStats(ctx)
		if err != nil {
			h.logger.Error("failed to list links with stats", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list links",
			})
		}

		response := make([]LinkResponse, len(links))
		for i := range links {
			response[i] = linkResponse(&links[i].Link)
			clicks := links[i].Clicks
			response[i].Clicks = &clicks
		}
		return c.JSON(fiber.Map{"links": response, "count": len(response)})
	}

	limit := 100
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 500 {
		limit = parsed
	}
	offset := 0
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}
	status := c.Query("status")
	if status != "" && status != model.StatusActive && status != model.StatusFrozen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status must be active or frozen",
		})
	}

	links, err := h.links.ListLinks(ctx, limit, offset, status)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = linkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, err := h.links.GetLink(userContext(c), c.Params("id"))
	if err != nil {
		return h.linkError(c, err, "failed to get link")
	}
	return c.JSON(linkResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link. Absent
// fields are left unchanged.
type UpdateLinkRequest struct {
	LongLink    *string   `json:"long_link,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Code        *string   `json:"code,omitempty"`
}

// UpdateLink handles PATCH /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link, err := h.links.UpdateLink(userContext(c), c.Params("id"), service.UpdateLinkInput{
		LongLink:    req.LongLink,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Code:        req.Code,
	})
	if err != nil {
		return h.linkError(c, err, "failed to update link")
	}
	return c.JSON(linkResponse(link))
}

// SetStatusRequest carries the target status for a link.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /api/links/:id/status
func (h *APIHandler) SetStatus(c *fiber.Ctx) error {
	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link, err := h.links.SetStatus(userContext(c), c.Params("id"), req.Status)
	if err != nil {
		return h.linkError(c, err, "failed to set link status")
	}
	return c.JSON(linkResponse(link))
}

// DeleteLink handles DELETE /api/links/:id. A link with recorded activity is
// protected; pass ?force=true to delete it together with its activity rows.
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	ctx := userContext(c)
	id := c.Params("id")

	if !c.QueryBool("force") {
		clicks, err := h.links.LinkClicks(ctx, id)
		if err != nil {
			return h.linkError(c, err, "failed to check link activity")
		}
		if clicks > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "link has recorded activity",
				"clicks": clicks,
			})
		}
	}

	if err := h.links.DeleteLink(ctx, id); err != nil {
		return h.linkError(c, err, "failed to delete link")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GlobalStats handles GET /api/stats
func (h *APIHandler) GlobalStats(c *fiber.Ctx) error {
	stats, err := h.analytics.GlobalStats(userContext(c))
	if err != nil {
		h.logger.Error("failed to load global stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load stats",
		})
	}
	return c.JSON(fiber.Map{
		"total_links":  stats.Links,
		"total_clicks": stats.Clicks,
	})
}

// TrendPointResponse is one day of the click trend.
type TrendPointResponse struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// LinkAnalytics handles GET /api/links/:id/analytics and bundles the full
// per-link report: trend, distributions, unique visitors and rolling totals.
func (h *APIHandler) LinkAnalytics(c *fiber.Ctx) error {
	ctx := userContext(c)
	id := c.Params("id")

	if _, err := h.links.GetLink(ctx, id); err != nil {
		return h.linkError(c, err, "failed to load link")
	}

	windowDays := c.QueryInt("window", service.DefaultTrendWindow)

	trendSeq, err := h.analytics.ClickTrend(ctx, id, windowDays)
	if err != nil {
		return h.analyticsError(c, err)
	}
	var trend []TrendPointResponse
	for point := range trendSeq {
		trend = append(trend, TrendPointResponse{
			Date:   point.Date.Format(time.DateOnly),
			Clicks: point.Clicks,
		})
	}

	devices, err := h.analytics.DeviceDistribution(ctx, id)
	if err != nil {
		return h.analyticsError(c, err)
	}
	referrers, err := h.analytics.ReferrerDistribution(ctx, id)
	if err != nil {
		return h.analyticsError(c, err)
	}
	unique, err := h.analytics.UniqueVisitors(ctx, id)
	if err != nil {
		return h.analyticsError(c, err)
	}
	totals, err := h.analytics.RollingTotals(ctx, id)
	if err != nil {
		return h.analyticsError(c, err)
	}

	deviceOut := make([]fiber.Map, len(devices))
	for i, d := range devices {
		deviceOut[i] = fiber.Map{"name": d.Name, "percent": d.Percent}
	}
	referrerOut := make([]fiber.Map, len(referrers))
	for i, r := range referrers {
		referrerOut[i] = fiber.Map{"source": r.Source, "clicks": r.Clicks, "percent": r.Percent}
	}

	return c.JSON(fiber.Map{
		"link_id":         id,
		"trend":           trend,
		"devices":         deviceOut,
		"referrers":       referrerOut,
		"unique_visitors": unique,
		"totals": fiber.Map{
			"last_day":  totals.LastDay,
			"last_week": totals.LastWeek,
			"all_time":  totals.AllTime,
		},
	})
}

// ActivityResponse is the wire form of one click event.
type ActivityResponse struct {
	ID          string    `json:"id"`
	LinkID      string    `json:"link_id"`
	IP          string    `json:"ip"`
	Fingerprint *string   `json:"fingerprint,omitempty"`
	Device      *string   `json:"device,omitempty"`
	Origin      *string   `json:"origin,omitempty"`
	ClickedAt   time.Time `json:"clicked_at"`
}

// ListActivities handles GET /api/links/:id/activities with the optional
// device/origin/fingerprint/time filters combined with AND semantics.
func (h *APIHandler) ListActivities(c *fiber.Ctx) error {
	ctx := userContext(c)

	filter := repository.ActivityFilter{
		LinkID:      c.Params("id"),
		Device:      c.Query("device"),
		Origin:      c.Query("origin"),
		Fingerprint: c.Query("fingerprint"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since must be RFC3339"})
		}
		filter.Since = &t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "until must be RFC3339"})
		}
		filter.Until = &t
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	activities, total, err := h.analytics.ListActivities(ctx, filter, limit, offset)
	if err != nil {
		return h.analyticsError(c, err)
	}

	response := make([]ActivityResponse, len(activities))
	for i, a := range activities {
		response[i] = ActivityResponse{
			ID:          a.ID,
			LinkID:      a.LinkID,
			IP:          a.IP,
			Fingerprint: a.Fingerprint,
			Device:      a.Device,
			Origin:      a.Origin,
			ClickedAt:   a.ClickedAt,
		}
	}

	return c.JSON(fiber.Map{
		"activities": response,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *APIHandler) linkError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrEmptyLongLink), errors.Is(err, service.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrShortLinkTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
	}
}

func (h *APIHandler) analyticsError(c *fiber.Ctx, err error) error {
	h.logger.Error("analytics query failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "failed to load analytics",
	})
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
