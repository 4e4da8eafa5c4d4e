package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/sifan077/GateLink/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2030, time.June, 10, 8, 0, 0, 0, time.UTC)

type mockLinkRepository struct {
	createFn      func(ctx context.Context, link *model.Link) error
	getByTokenFn  func(ctx context.Context, token string) (*model.Link, error)
	getByOwnerFn  func(ctx context.Context, ownerID, id string) (*model.Link, error)
	listByOwnerFn func(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	disableFn     func(ctx context.Context, ownerID, id string) (*model.Link, bool, error)
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByToken(ctx context.Context, token string) (*model.Link, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) GetByOwner(ctx context.Context, ownerID, id string) (*model.Link, error) {
	if m.getByOwnerFn != nil {
		return m.getByOwnerFn(ctx, ownerID, id)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

func (m *mockLinkRepository) Disable(ctx context.Context, ownerID, id string) (*model.Link, bool, error) {
	if m.disableFn != nil {
		return m.disableFn(ctx, ownerID, id)
	}
	return nil, false, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) ResolveAndIncrement(ctx context.Context, token string, now time.Time) (string, error) {
	return "", repository.ErrGateFailed
}

func (m *mockLinkRepository) EachToken(ctx context.Context, fn func(token string)) error {
	return nil
}

type sequenceTokens struct {
	tokens     []string
	next       int
	remembered []string
}

func (s *sequenceTokens) Next() (string, error) {
	if s.next >= len(s.tokens) {
		return "", errors.New("out of tokens")
	}
	tok := s.tokens[s.next]
	s.next++
	return tok, nil
}

func (s *sequenceTokens) Remember(token string) {
	s.remembered = append(s.remembered, token)
}

type prefixHasher struct{}

func (prefixHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

type recordingPublisher struct {
	events []model.LinkEventType
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ *model.Link, eventType model.LinkEventType) error {
	p.events = append(p.events, eventType)
	return p.err
}

func newTestService(repo repository.LinkRepository, tokens TokenIssuer, events EventPublisher) LinkService {
	return NewLinkService(Deps{
		Links:     repo,
		Tokens:    tokens,
		Passwords: prefixHasher{},
		Events:    events,
		Now:       func() time.Time { return fixedNow },
	})
}

func TestLinkService_CreateLink(t *testing.T) {
	var stored *model.Link
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			stored = link
			return nil
		},
	}
	tokens := &sequenceTokens{tokens: []string{"abcDEF2345"}}
	events := &recordingPublisher{}

	svc := newTestService(repo, tokens, events)
	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OwnerID:   "user-1",
		TargetURL: "  https://example.com/page ",
		Label:     "Landing",
		MaxClicks: "3",
		ExpiresAt: "2030-06-11T08:00:00Z",
		Password:  "secret",
	})
	require.NoError(t, err)
	require.Same(t, stored, link)

	assert.NotEmpty(t, link.ID)
	assert.Equal(t, "abcDEF2345", link.Token)
	assert.Equal(t, "user-1", link.OwnerID)
	assert.Equal(t, "https://example.com/page", link.TargetURL)
	assert.True(t, link.IsActive)
	assert.Zero(t, link.ClickCount)
	require.NotNil(t, link.Label)
	assert.Equal(t, "Landing", *link.Label)
	require.NotNil(t, link.MaxClicks)
	assert.Equal(t, 3, *link.MaxClicks)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, link.ExpiresAt.Equal(fixedNow.Add(24*time.Hour)))
	require.NotNil(t, link.PasswordHash)
	assert.Equal(t, "hashed:secret", *link.PasswordHash)
	assert.Nil(t, link.RevealAt)
	assert.Nil(t, link.DelaySeconds)
	assert.Equal(t, fixedNow, link.CreatedAt)

	assert.Equal(t, []string{"abcDEF2345"}, tokens.remembered)
	assert.Equal(t, []model.LinkEventType{model.LinkEventCreated}, events.events)
}

func TestLinkService_CreateLink_EmptyOptionalFieldsStayUnset(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &sequenceTokens{tokens: []string{"tok"}}, nil)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OwnerID:      "user-1",
		TargetURL:    "http://example.com",
		MaxClicks:    " ",
		ExpiresAt:    "",
		RevealAt:     "",
		DelaySeconds: "",
	})
	require.NoError(t, err)
	assert.Nil(t, link.MaxClicks)
	assert.Nil(t, link.ExpiresAt)
	assert.Nil(t, link.RevealAt)
	assert.Nil(t, link.DelaySeconds)
	assert.Nil(t, link.PasswordHash)
	assert.Nil(t, link.Label)
}

func TestLinkService_CreateLink_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateLinkInput
		field string
	}{
		{name: "missing url", input: CreateLinkInput{TargetURL: ""}, field: "target_url"},
		{name: "unsupported scheme", input: CreateLinkInput{TargetURL: "ftp://example.com"}, field: "target_url"},
		{name: "no host", input: CreateLinkInput{TargetURL: "https://"}, field: "target_url"},
		{name: "fractional max clicks", input: CreateLinkInput{TargetURL: "https://a.io", MaxClicks: "2.5"}, field: "max_clicks"},
		{name: "zero max clicks", input: CreateLinkInput{TargetURL: "https://a.io", MaxClicks: "0"}, field: "max_clicks"},
		{name: "text max clicks", input: CreateLinkInput{TargetURL: "https://a.io", MaxClicks: "lots"}, field: "max_clicks"},
		{name: "past expiry", input: CreateLinkInput{TargetURL: "https://a.io", ExpiresAt: "2030-06-10T07:59:59Z"}, field: "expires_at"},
		{name: "unparseable expiry", input: CreateLinkInput{TargetURL: "https://a.io", ExpiresAt: "tomorrow"}, field: "expires_at"},
		{name: "unparseable reveal", input: CreateLinkInput{TargetURL: "https://a.io", RevealAt: "soon"}, field: "reveal_at"},
		{
			name:  "reveal after expiry",
			input: CreateLinkInput{TargetURL: "https://a.io", ExpiresAt: "2030-06-10T09:00:00Z", RevealAt: "2030-06-10T10:00:00Z"},
			field: "reveal_at",
		},
		{name: "negative delay", input: CreateLinkInput{TargetURL: "https://a.io", DelaySeconds: "-5"}, field: "delay_seconds"},
		{name: "delay overflows duration", input: CreateLinkInput{TargetURL: "https://a.io", DelaySeconds: "10000000000"}, field: "delay_seconds"},
		{
			name:  "delay beyond expiry",
			input: CreateLinkInput{TargetURL: "https://a.io", ExpiresAt: "2030-06-10T08:01:00Z", DelaySeconds: "120"},
			field: "delay_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockLinkRepository{
				createFn: func(ctx context.Context, link *model.Link) error {
					t.Fatal("invalid input must not reach the repository")
					return nil
				},
			}
			svc := newTestService(repo, &sequenceTokens{tokens: []string{"tok"}}, nil)

			tt.input.OwnerID = "user-1"
			_, err := svc.CreateLink(context.Background(), tt.input)
			require.ErrorIs(t, err, ErrInvalidInput)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLinkService_CreateLink_RequiresOwner(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &sequenceTokens{tokens: []string{"tok"}}, nil)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{TargetURL: "https://a.io"})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestLinkService_CreateLink_RetriesOnCollision(t *testing.T) {
	calls := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			calls++
			if calls < 3 {
				return repository.ErrTokenCollision
			}
			return nil
		},
	}
	tokens := &sequenceTokens{tokens: []string{"t1", "t2", "t3"}}

	link, err := newTestService(repo, tokens, nil).CreateLink(context.Background(), CreateLinkInput{
		OwnerID:   "user-1",
		TargetURL: "https://a.io",
	})
	require.NoError(t, err)
	assert.Equal(t, "t3", link.Token)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"t1", "t2", "t3"}, tokens.remembered)
}

func TestLinkService_CreateLink_GivesUpAfterBoundedRetries(t *testing.T) {
	calls := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			calls++
			return repository.ErrTokenCollision
		},
	}
	tokens := &sequenceTokens{tokens: []string{"t1", "t2", "t3", "t4"}}

	_, err := newTestService(repo, tokens, nil).CreateLink(context.Background(), CreateLinkInput{
		OwnerID:   "user-1",
		TargetURL: "https://a.io",
	})
	assert.ErrorIs(t, err, repository.ErrTokenCollision)
	assert.Equal(t, 3, calls)
}

func TestLinkService_CreateLink_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			calls++
			return boom
		},
	}

	_, err := newTestService(repo, &sequenceTokens{tokens: []string{"t1", "t2"}}, nil).CreateLink(context.Background(), CreateLinkInput{
		OwnerID:   "user-1",
		TargetURL: "https://a.io",
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestLinkService_CreateLink_PublishFailureIsNotFatal(t *testing.T) {
	events := &recordingPublisher{err: errors.New("nats down")}
	svc := newTestService(&mockLinkRepository{}, &sequenceTokens{tokens: []string{"tok"}}, events)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{OwnerID: "user-1", TargetURL: "https://a.io"})
	assert.NoError(t, err)
	assert.Len(t, events.events, 1)
}

func TestLinkService_GetLink_NotFound(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &sequenceTokens{}, nil)

	_, err := svc.GetLink(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestLinkService_ListLinks(t *testing.T) {
	repo := &mockLinkRepository{
		listByOwnerFn: func(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
			assert.Equal(t, "user-1", ownerID)
			return []model.Link{{Token: "a"}, {Token: "b"}}, nil
		},
	}

	list, err := newTestService(repo, &sequenceTokens{}, nil).ListLinks(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLinkService_DisableLink(t *testing.T) {
	repo := &mockLinkRepository{
		disableFn: func(ctx context.Context, ownerID, id string) (*model.Link, bool, error) {
			if ownerID != "user-1" {
				return nil, false, repository.ErrLinkNotFound
			}
			return &model.Link{ID: id, OwnerID: ownerID, IsActive: false}, true, nil
		},
	}
	events := &recordingPublisher{}
	svc := newTestService(repo, &sequenceTokens{}, events)

	_, err := svc.DisableLink(context.Background(), "user-2", "link-1")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Empty(t, events.events)

	link, err := svc.DisableLink(context.Background(), "user-1", "link-1")
	require.NoError(t, err)
	assert.False(t, link.IsActive)
	assert.Equal(t, []model.LinkEventType{model.LinkEventDisabled}, events.events)
}

func TestLinkService_DisableLink_AlreadyDisabled(t *testing.T) {
	repo := &mockLinkRepository{
		disableFn: func(ctx context.Context, ownerID, id string) (*model.Link, bool, error) {
			return &model.Link{ID: id, OwnerID: ownerID, IsActive: false}, false, nil
		},
	}
	events := &recordingPublisher{}
	svc := newTestService(repo, &sequenceTokens{}, events)

	link, err := svc.DisableLink(context.Background(), "user-1", "link-1")
	require.NoError(t, err)
	assert.False(t, link.IsActive)
	assert.Empty(t, events.events)
}

func TestLinkService_ListLinkEvents(t *testing.T) {
	repo := &mockLinkRepository{
		getByOwnerFn: func(ctx context.Context, ownerID, id string) (*model.Link, error) {
			if ownerID != "user-1" {
				return nil, repository.ErrLinkNotFound
			}
			return &model.Link{ID: id, OwnerID: ownerID}, nil
		},
	}
	audit := &mockLinkEventRepository{
		listFn: func(ctx context.Context, linkID string) ([]model.LinkEvent, error) {
			return []model.LinkEvent{
				{ID: "evt-1", LinkID: linkID, Type: model.LinkEventCreated},
				{ID: "evt-2", LinkID: linkID, Type: model.LinkEventDisabled},
			}, nil
		},
	}
	svc := NewLinkService(Deps{Links: repo, Tokens: &sequenceTokens{}, Audit: audit})

	events, err := svc.ListLinkEvents(context.Background(), "user-1", "link-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.LinkEventDisabled, events[1].Type)

	_, err = svc.ListLinkEvents(context.Background(), "user-2", "link-1")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = svc.ListLinkEvents(context.Background(), "", "link-1")
	assert.ErrorIs(t, err, ErrOwnerRequired)

	noAudit := NewLinkService(Deps{Links: repo, Tokens: &sequenceTokens{}})
	events, err = noAudit.ListLinkEvents(context.Background(), "user-1", "link-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}
