package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLinkEventRepository struct {
	createFn func(ctx context.Context, event *model.LinkEvent) error
	deleteFn func(ctx context.Context, cutoff time.Time) (int64, error)
	listFn   func(ctx context.Context, linkID string) ([]model.LinkEvent, error)
}

func (m *mockLinkEventRepository) Create(ctx context.Context, event *model.LinkEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockLinkEventRepository) ListByLink(ctx context.Context, linkID string) ([]model.LinkEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, linkID)
	}
	return nil, nil
}

func (m *mockLinkEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

func TestLinkEventConsumer_Process(t *testing.T) {
	var stored *model.LinkEvent
	repo := &mockLinkEventRepository{
		createFn: func(ctx context.Context, event *model.LinkEvent) error {
			stored = event
			return nil
		},
	}
	consumer := NewLinkEventConsumer(nil, zap.NewNop(), repo)

	data, err := json.Marshal(model.LinkEvent{
		ID:         "evt-1",
		LinkID:     "link-1",
		Token:      "tok",
		OwnerID:    "user-1",
		Type:       model.LinkEventDisabled,
		OccurredAt: fixedNow,
	})
	require.NoError(t, err)

	require.NoError(t, consumer.process(context.Background(), data))
	require.NotNil(t, stored)
	assert.Equal(t, "evt-1", stored.ID)
	assert.Equal(t, model.LinkEventDisabled, stored.Type)
	assert.True(t, stored.OccurredAt.Equal(fixedNow))
}

func TestLinkEventConsumer_ProcessErrors(t *testing.T) {
	repo := &mockLinkEventRepository{
		createFn: func(ctx context.Context, event *model.LinkEvent) error {
			return errors.New("db down")
		},
	}
	consumer := NewLinkEventConsumer(nil, zap.NewNop(), repo)

	assert.Error(t, consumer.process(context.Background(), []byte("{not json")))
	assert.Error(t, consumer.process(context.Background(), []byte(`{"id":"evt-2"}`)))
}

func TestLinkEventPruner_Prune(t *testing.T) {
	var gotCutoff time.Time
	repo := &mockLinkEventRepository{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 4, nil
		},
	}
	pruner := NewLinkEventPruner(zap.NewNop(), repo, 72*time.Hour)
	pruner.now = func() time.Time { return fixedNow }

	assert.EqualValues(t, 4, pruner.prune(context.Background()))
	assert.Equal(t, fixedNow.Add(-72*time.Hour), gotCutoff)
}

func TestLinkEventPruner_StartStop(t *testing.T) {
	pruner := NewLinkEventPruner(zap.NewNop(), &mockLinkEventRepository{}, time.Hour)
	pruner.Start()
	pruner.Stop()
}

func TestLinkEventType_Subject(t *testing.T) {
	assert.Equal(t, "links.events.created", model.LinkEventCreated.Subject())
}
