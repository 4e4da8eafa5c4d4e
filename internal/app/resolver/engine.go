package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/sifan077/GateLink/internal/app/repository"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// Store is the part of the link store the engine depends on.
type Store interface {
	GetByToken(ctx context.Context, token string) (*model.Link, error)
	ResolveAndIncrement(ctx context.Context, token string, now time.Time) (string, error)
}

// PasswordVerifier compares a plaintext attempt against a stored hash.
type PasswordVerifier interface {
	Verify(hash, plain string) bool
}

// Recorder observes every resolution; used for metrics.
type Recorder interface {
	RecordResolution(outcome string, prefetch bool)
}

// Deps groups the collaborators of the engine.
type Deps struct {
	Store     Store
	Passwords PasswordVerifier
	Logger    *zap.Logger
	Recorder  Recorder
	// Timeout bounds each store call; a timeout counts as a failure.
	Timeout time.Duration
}

// Engine decides what a token resolves to and records genuine visits.
type Engine struct {
	store     Store
	passwords PasswordVerifier
	logger    *zap.Logger
	recorder  Recorder
	timeout   time.Duration
}

// New creates an Engine.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		store:     deps.Store,
		passwords: deps.Passwords,
		logger:    logger,
		recorder:  deps.Recorder,
		timeout:   timeout,
	}
}

// Evaluate applies the gates to a link snapshot. It has no side effects; the first gate
// that matches wins.
func (e *Engine) Evaluate(link *model.Link, req Request) Resolution {
	if link == nil {
		return outcome(OutcomeNotFound)
	}
	if !link.IsActive {
		return outcome(OutcomeDisabled)
	}

	// reveal_at is checked before the relative delay.
	if link.RevealAt != nil && req.Now.Before(*link.RevealAt) {
		return Resolution{Outcome: OutcomeNotYetAvailable, Until: *link.RevealAt}
	}
	if until, ok := link.DelayedUntil(); ok && req.Now.Before(until) {
		return Resolution{Outcome: OutcomeNotYetAvailable, Until: until}
	}

	if link.HasPassword() {
		if req.Password == "" {
			return Resolution{Outcome: OutcomePasswordRequired}
		}
		if e.passwords == nil || !e.passwords.Verify(*link.PasswordHash, req.Password) {
			return Resolution{Outcome: OutcomePasswordRequired, WrongAttempt: true}
		}
	}

	if link.ExpiresAt != nil && !req.Now.Before(*link.ExpiresAt) {
		return outcome(OutcomeExpired)
	}
	if link.MaxClicks != nil && link.ClickCount >= *link.MaxClicks {
		return outcome(OutcomeExhausted)
	}

	return redirect(link.TargetURL)
}

// Resolve loads the link, evaluates it and, for a genuine redirect, consumes a click through
// the store's atomic primitive. It never returns an error: every failure maps to an outcome.
func (e *Engine) Resolve(ctx context.Context, token string, req Request) Resolution {
	res := e.resolve(ctx, token, req)
	if e.recorder != nil {
		e.recorder.RecordResolution(res.Outcome.String(), req.Prefetch)
	}
	return res
}

func (e *Engine) resolve(ctx context.Context, token string, req Request) Resolution {
	if token == "" {
		return outcome(OutcomeNotFound)
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	link, err := e.load(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return outcome(OutcomeNotFound)
		}
		e.logger.Error("failed to load link", zap.Error(err), zap.String("token", token))
		return outcome(OutcomeUnavailable)
	}

	res := e.Evaluate(link, req)
	if res.Outcome != OutcomeRedirect || req.Prefetch {
		return res
	}

	target, err := e.consume(ctx, token, req.Now)
	switch {
	case err == nil:
		return redirect(target)
	case errors.Is(err, repository.ErrGateFailed):
		e.logger.Debug("link gate closed during resolve", zap.String("token", token))
		return outcome(OutcomeGateFailed)
	case errors.Is(err, repository.ErrLinkNotFound):
		return outcome(OutcomeNotFound)
	default:
		e.logger.Error("failed to record link visit", zap.Error(err), zap.String("token", token))
		return outcome(OutcomeUnavailable)
	}
}

func (e *Engine) load(ctx context.Context, token string) (*model.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.GetByToken(ctx, token)
}

func (e *Engine) consume(ctx context.Context, token string, now time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.ResolveAndIncrement(ctx, token, now)
}
