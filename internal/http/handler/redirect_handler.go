package handler

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GateLink/internal/app/resolver"
	httpUtil "github.com/sifan077/GateLink/internal/http/util"
	"go.uber.org/zap"
)

// Resolver is the part of the resolution engine the redirect handler needs.
type Resolver interface {
	Resolve(ctx context.Context, token string, req resolver.Request) resolver.Resolution
}

// Destinations are where non-redirect outcomes send the visitor. Each may be a path served
// by this process or an absolute URL.
type Destinations struct {
	Expired          string
	NotYetAvailable  string
	PasswordRequired string
}

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger       *zap.Logger
	Resolver     Resolver
	Destinations Destinations
	Now          func() time.Time
}

// RedirectHandler serves GET /l/:token and the destination pages it points to.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver Resolver
	dest     Destinations
	now      func() time.Time
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		dest:     deps.Destinations,
		now:      now,
	}
}

// Register wires the public link route. Destinations that are local paths get a JSON
// endpoint; absolute URLs are left to whatever frontend serves them.
func (h *RedirectHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/l/:token", append(guards, h.Resolve)...)

	if isLocalPath(h.dest.Expired) {
		router.Get(h.dest.Expired, h.Expired)
	}
	if isLocalPath(h.dest.NotYetAvailable) {
		router.Get(h.dest.NotYetAvailable, h.NotYetAvailable)
	}
	if isLocalPath(h.dest.PasswordRequired) {
		router.Get(h.dest.PasswordRequired, h.PasswordRequired)
	}
}

// Resolve handles GET /l/:token. Every outcome is answered with a 302.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	token := c.Params("token")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	res := h.resolver.Resolve(ctx, token, resolver.Request{
		Now:      h.now(),
		Password: c.Query("pw"),
		Prefetch: httpUtil.IsPrefetch(c.Get),
	})

	c.Set(fiber.HeaderCacheControl, "no-store")
	location := h.location(token, res)
	h.logger.Debug("resolved link",
		zap.String("token", token),
		zap.Stringer("outcome", res.Outcome),
	)
	return c.Redirect(location, fiber.StatusFound)
}

func (h *RedirectHandler) location(token string, res resolver.Resolution) string {
	switch res.Outcome {
	case resolver.OutcomeRedirect:
		return res.TargetURL
	case resolver.OutcomeNotYetAvailable:
		return withQuery(h.dest.NotYetAvailable, url.Values{
			"until": {res.Until.UTC().Format(time.RFC3339)},
		})
	case resolver.OutcomePasswordRequired:
		q := url.Values{"token": {token}}
		if res.WrongAttempt {
			q.Set("bad", "1")
		}
		return withQuery(h.dest.PasswordRequired, q)
	default:
		return h.dest.Expired
	}
}

// Expired is the landing page for links that can no longer be followed.
func (h *RedirectHandler) Expired(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusGone).JSON(fiber.Map{
		"status":  "unavailable",
		"message": "This link has expired or is no longer available.",
	})
}

// NotYetAvailable tells the visitor when the link opens.
func (h *RedirectHandler) NotYetAvailable(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	body := fiber.Map{
		"status":  "not_yet_available",
		"message": "This link is not available yet.",
		"until":   nil,
	}
	if raw := c.Query("until"); raw != "" {
		if until, err := time.Parse(time.RFC3339, raw); err == nil {
			body["until"] = until.UTC().Format(time.RFC3339)
			body["retry_after_seconds"] = max(0, int(until.Sub(h.now()).Seconds()))
		}
	}
	return c.Status(fiber.StatusForbidden).JSON(body)
}

// PasswordRequired describes how to retry a protected link.
func (h *RedirectHandler) PasswordRequired(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	token := c.Query("token")
	body := fiber.Map{
		"status":  "password_required",
		"message": "This link is protected by a password.",
		"token":   token,
		"bad":     c.Query("bad") == "1",
	}
	if token != "" {
		body["retry"] = "/l/" + url.PathEscape(token) + "?pw="
	}
	return c.Status(fiber.StatusUnauthorized).JSON(body)
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}
