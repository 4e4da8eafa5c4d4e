package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/sifan077/GateLink/internal/app/repository"
	"github.com/sifan077/GateLink/internal/app/resolver"
	"github.com/sifan077/GateLink/internal/app/service"
	"github.com/sifan077/GateLink/internal/app/token"
	inthttp "github.com/sifan077/GateLink/internal/http/handler"
	"github.com/sifan077/GateLink/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *repository.MemoryLinkRepository) {
	t.Helper()
	repo := repository.NewMemoryLinkRepository()
	s := New(Dependencies{
		Resolver: resolver.New(resolver.Deps{Store: repo}),
		LinkService: service.NewLinkService(service.Deps{
			Links:  repo,
			Tokens: token.NewGenerator(token.Options{ExpectedLinks: 100}),
		}),
		Destinations: inthttp.Destinations{
			Expired:          "/expired",
			NotYetAvailable:  "/not-yet-available",
			PasswordRequired: "/password-required",
		},
		Checks: map[string]inthttp.Check{
			"postgres": func(context.Context) error { return nil },
		},
		JWTSecret: []byte("server-test"),
	})
	return s, repo
}

func TestServer_Routes(t *testing.T) {
	s, repo := newTestServer(t)
	require.NoError(t, repo.Create(context.Background(), &model.Link{
		ID:        uuid.NewString(),
		Token:     "abc123",
		OwnerID:   "owner",
		TargetURL: "https://example.com",
		IsActive:  true,
		CreatedAt: time.Now().Add(-time.Minute),
	}))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/l/abc123", nil)
	req.Header.Set(middleware.RequestIDHeader, "rid-1")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.Header.Get("Location"))
	assert.Equal(t, "rid-1", resp.Header.Get(middleware.RequestIDHeader))

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/links", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bearer, err := middleware.IssueUserToken([]byte("server-test"), "owner", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
