package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/sifan077/GateLink/internal/app/repository"
	"github.com/sifan077/GateLink/internal/app/service"
	"github.com/sifan077/GateLink/internal/http/middleware"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router. guards run before every route,
// typically CORS and authentication.
func (h *APIHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	links := router.Group("/api/links", guards...)
	links.Post("/", h.CreateLink)
	links.Get("/", h.ListLinks)
	links.Get("/:id", h.GetLink)
	links.Post("/:id/disable", h.DisableLink)
	links.Get("/:id/events", h.ListLinkEvents)
}

// CreateLinkRequest is the body of POST /api/links. Numeric and time fields accept either
// JSON numbers or strings; empty means "not set".
type CreateLinkRequest struct {
	TargetURL    string          `json:"target_url"`
	Label        string          `json:"label,omitempty"`
	MaxClicks    json.RawMessage `json:"max_clicks,omitempty"`
	ExpiresAt    json.RawMessage `json:"expires_at,omitempty"`
	RevealAt     json.RawMessage `json:"reveal_at,omitempty"`
	DelaySeconds json.RawMessage `json:"delay_seconds,omitempty"`
	Password     string          `json:"password,omitempty"`
}

// LinkResponse is the management view of a link. The password hash is never exposed.
type LinkResponse struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	Path         string     `json:"path"`
	TargetURL    string     `json:"target_url"`
	Label        *string    `json:"label"`
	IsActive     bool       `json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxClicks    *int       `json:"max_clicks"`
	ClickCount   int        `json:"click_count"`
	HasPassword  bool       `json:"has_password"`
	RevealAt     *time.Time `json:"reveal_at"`
	DelaySeconds *int       `json:"delay_seconds"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newLinkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:           link.ID,
		Token:        link.Token,
		Path:         "/l/" + link.Token,
		TargetURL:    link.TargetURL,
		Label:        link.Label,
		IsActive:     link.IsActive,
		ExpiresAt:    link.ExpiresAt,
		MaxClicks:    link.MaxClicks,
		ClickCount:   link.ClickCount,
		HasPassword:  link.HasPassword(),
		RevealAt:     link.RevealAt,
		DelaySeconds: link.DelaySeconds,
		CreatedAt:    link.CreatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	input := service.CreateLinkInput{
		OwnerID:   currentOwner(c),
		TargetURL: req.TargetURL,
		Label:     req.Label,
		Password:  req.Password,
	}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"max_clicks", req.MaxClicks, &input.MaxClicks},
		{"expires_at", req.ExpiresAt, &input.ExpiresAt},
		{"reveal_at", req.RevealAt, &input.RevealAt},
		{"delay_seconds", req.DelaySeconds, &input.DelaySeconds},
	}
	for _, f := range fields {
		text, err := rawText(f.raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": f.name + ": must be a number or string",
				"field": f.name,
			})
		}
		*f.dst = text
	}

	link, err := h.linkService.CreateLink(c.UserContext(), input)
	if err != nil {
		return h.fail(c, "failed to create link", err)
	}

	return c.Status(fiber.StatusCreated).JSON(newLinkResponse(link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := defaultPageSize
	if parsed := c.QueryInt("limit"); parsed > 0 {
		limit = min(parsed, maxPageSize)
	}
	offset := max(0, c.QueryInt("offset"))

	links, err := h.linkService.ListLinks(c.UserContext(), currentOwner(c), limit, offset)
	if err != nil {
		return h.fail(c, "failed to list links", err)
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = newLinkResponse(&links[i])
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
	link, err := h.linkService.GetLink(c.UserContext(), currentOwner(c), c.Params("id"))
	if err != nil {
		return h.fail(c, "failed to get link", err)
	}
	return c.JSON(newLinkResponse(link))
}

// DisableLink handles POST /api/links/:id/disable
func (h *APIHandler) DisableLink(c *fiber.Ctx) error {
	link, err := h.linkService.DisableLink(c.UserContext(), currentOwner(c), c.Params("id"))
	if err != nil {
		return h.fail(c, "failed to disable link", err)
	}
	return c.JSON(newLinkResponse(link))
}

// ListLinkEvents handles GET /api/links/:id/events
func (h *APIHandler) ListLinkEvents(c *fiber.Ctx) error {
	events, err := h.linkService.ListLinkEvents(c.UserContext(), currentOwner(c), c.Params("id"))
	if err != nil {
		return h.fail(c, "failed to list link events", err)
	}
	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

func (h *APIHandler) fail(c *fiber.Ctx, msg string, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, service.ErrOwnerRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	case errors.Is(err, repository.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}

	h.logger.Error(msg, zap.Error(err), zap.String("request_id", middleware.RequestIDFrom(c)))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

func currentOwner(c *fiber.Ctx) string {
	owner, _ := middleware.CurrentUserID(c)
	return owner
}

// rawText returns a JSON string's contents or a number's literal text. null and absent
// values yield "".
func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
