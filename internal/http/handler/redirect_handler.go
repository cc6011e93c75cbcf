package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zxdlabs/shortlink/internal/app/service"
	"go.uber.org/zap"
)

// Fixed destinations for the non-redirect outcomes.
const (
	landingPath = "/"
	frozenPath  = "/frozen"
)

// FingerprintHeader carries the opaque visitor token used for unique-visitor
// counting. Absent header means the click never contributes to that count.
const FingerprintHeader = "X-Fingerprint"

// RedirectDeps groups dependencies required by the redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver *service.Resolver
	Postgres *pgxpool.Pool
}

// RedirectHandler implements the redirect flow and the health probe.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver *service.Resolver
	postgres *pgxpool.Pool
}

// NewRedirectHandler creates a redirect handler with the provided
// dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		postgres: deps.Postgres,
	}
}

// Register wires redirect routes onto the provided router. The bare-code
// route exists for short links minted before the /s/ path convention.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Landing)
	router.Get("/health", h.Health)
	router.Get("/frozen", h.Frozen)
	router.Get("/s/:code", h.Redirect)
	router.Get("/:code", h.Redirect)
}

// Landing is the generic page unknown codes end up on.
func (h *RedirectHandler) Landing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "shortlink",
		"status":  "ok",
	})
}

// Frozen is the fixed destination for paused links.
func (h *RedirectHandler) Frozen(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).
		Type("html", "utf-8").
		SendString("<!DOCTYPE html><html><body><p>This link has been frozen by its owner.</p></body></html>")
}

// Health performs one trivial round trip against the datastore and reports
// healthy/degraded.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.postgres.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "degraded",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Redirect handles GET /s/:code (and the legacy bare-code form). The click
// is recorded only on the active path, and never blocks the response.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Redirect(landingPath, fiber.StatusFound)
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	click := service.ClickInfo{
		IP:          clientIP(c),
		Fingerprint: c.Get(FingerprintHeader),
		Device:      deviceClass(c.Get("User-Agent")),
		Origin:      origin(c),
	}

	resolution, err := h.resolver.Resolve(ctx, code, click)
	if err != nil {
		h.logger.Error("redirect resolution failed", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	switch resolution.Outcome {
	case service.OutcomeRedirect:
		h.logger.Debug("redirecting short link",
			zap.String("code", code),
			zap.String("target", resolution.LongLink))
		return c.Redirect(resolution.LongLink, fiber.StatusFound)
	case service.OutcomeFrozen:
		return c.Redirect(frozenPath, fiber.StatusFound)
	default:
		return c.Redirect(landingPath, fiber.StatusFound)
	}
}

func clientIP(c *fiber.Ctx) string {
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

func origin(c *fiber.Ctx) string {
	if ref := c.Get("Referer"); ref != "" {
		return ref
	}
	return "direct"
}

// deviceClass reduces a User-Agent to the coarse class stored on activity
// rows.
func deviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}
