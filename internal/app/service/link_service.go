package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/sifan077/GateLink/internal/app/repository"
	"go.uber.org/zap"
)

const defaultCreateAttempts = 3

// ErrOwnerRequired is returned when a management call has no authenticated owner.
var ErrOwnerRequired = errors.New("owner is required")

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, ownerID, id string) (*model.Link, error)
	ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	DisableLink(ctx context.Context, ownerID, id string) (*model.Link, error)
	ListLinkEvents(ctx context.Context, ownerID, id string) ([]model.LinkEvent, error)
}

// TokenIssuer hands out candidate tokens and learns which ones are taken.
type TokenIssuer interface {
	Next() (string, error)
	Remember(token string)
}

// PasswordHasher turns a plaintext link password into a storable hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EventPublisher announces link lifecycle transitions.
type EventPublisher interface {
	Publish(ctx context.Context, link *model.Link, eventType model.LinkEventType) error
}

// Deps groups the collaborators of the link service.
type Deps struct {
	Links     repository.LinkRepository
	Tokens    TokenIssuer
	Passwords PasswordHasher
	Events    EventPublisher
	// Audit is the persisted lifecycle trail; nil means no events are reported.
	Audit  repository.LinkEventRepository
	Logger *zap.Logger
	// MaxAttempts bounds token collision retries.
	MaxAttempts int
	Now         func() time.Time
}

type linkService struct {
	repo        repository.LinkRepository
	tokens      TokenIssuer
	passwords   PasswordHasher
	events      EventPublisher
	audit       repository.LinkEventRepository
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(deps Deps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultCreateAttempts
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &linkService{
		repo:        deps.Links,
		tokens:      deps.Tokens,
		passwords:   deps.Passwords,
		events:      deps.Events,
		audit:       deps.Audit,
		logger:      logger,
		maxAttempts: attempts,
		now:         now,
	}
}

// CreateLinkInput captures raw data required to create a link. Optional fields are kept as
// text so that "empty" and "invalid" stay distinguishable.
type CreateLinkInput struct {
	OwnerID      string
	TargetURL    string
	Label        string
	MaxClicks    string
	ExpiresAt    string
	RevealAt     string
	DelaySeconds string
	Password     string
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if input.OwnerID == "" {
		return nil, ErrOwnerRequired
	}

	now := s.now().UTC()
	fields, err := parseLinkFields(input, now)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if input.Password != "" {
		hash, err := s.passwords.Hash(input.Password)
		if err != nil {
			return nil, invalid("password", err.Error())
		}
		passwordHash = &hash
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		token, err := s.tokens.Next()
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}

		link := &model.Link{
			ID:           uuid.NewString(),
			Token:        token,
			OwnerID:      input.OwnerID,
			TargetURL:    fields.targetURL,
			Label:        fields.label,
			IsActive:     true,
			ExpiresAt:    fields.expiresAt,
			MaxClicks:    fields.maxClicks,
			PasswordHash: passwordHash,
			RevealAt:     fields.revealAt,
			DelaySeconds: fields.delaySeconds,
			CreatedAt:    now,
		}

		err = s.repo.Create(ctx, link)
		if err == nil {
			s.tokens.Remember(token)
			s.publish(ctx, link, model.LinkEventCreated)
			return link, nil
		}
		if !errors.Is(err, repository.ErrTokenCollision) {
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.tokens.Remember(token)
		s.logger.Warn("token collision, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
		)
	}

	return nil, fmt.Errorf("create link after %d attempts: %w", s.maxAttempts, repository.ErrTokenCollision)
}

func (s *linkService) GetLink(ctx context.Context, ownerID, id string) (*model.Link, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	link, err := s.repo.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	links, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) DisableLink(ctx context.Context, ownerID, id string) (*model.Link, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	link, changed, err := s.repo.Disable(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("disable link: %w", err)
	}
	if changed {
		s.publish(ctx, link, model.LinkEventDisabled)
	}
	return link, nil
}

func (s *linkService) ListLinkEvents(ctx context.Context, ownerID, id string) ([]model.LinkEvent, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if _, err := s.repo.GetByOwner(ctx, ownerID, id); err != nil {
		return nil, fmt.Errorf("list link events: %w", err)
	}
	if s.audit == nil {
		return []model.LinkEvent{}, nil
	}
	events, err := s.audit.ListByLink(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list link events: %w", err)
	}
	return events, nil
}

// publish is best effort: the audit trail must not block link management.
func (s *linkService) publish(ctx context.Context, link *model.Link, eventType model.LinkEventType) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, link, eventType); err != nil {
		s.logger.Error("failed to publish link event",
			zap.Error(err),
			zap.String("link_id", link.ID),
			zap.String("type", string(eventType)),
		)
	}
}
