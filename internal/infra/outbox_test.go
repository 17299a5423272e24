package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	sent     []sentMessage
	failFrom int // fail every publish once this many succeeded; -1 disables
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.failFrom >= 0 && len(p.sent) >= p.failFrom {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: string(key), value: value})
	return nil
}

func seedOutbox(t *testing.T, store *memstore.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		draft, err := domain.NewOutboxDraft(domain.AggregateGame, "7", domain.EventGameImported, map[string]int{"n": i})
		require.NoError(t, err)
		require.NoError(t, store.OutboxRepo().Insert(context.Background(), store, draft))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOutboxRelay_Topic(t *testing.T) {
	r := NewOutboxRelay(nil, nil, nil, "bpp", 0, discardLogger())
	assert.Equal(t, "bpp.archive.game.imported", r.Topic(domain.EventGameImported))

	bare := NewOutboxRelay(nil, nil, nil, "", 0, discardLogger())
	assert.Equal(t, "archive.game.imported", bare.Topic(domain.EventGameImported))
}

func TestOutboxRelay_PublishesAndClears(t *testing.T) {
	store := memstore.New()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{failFrom: -1}

	relay := NewOutboxRelay(store, store.OutboxRepo(), pub, "bpp", 10, discardLogger())
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, store.Outbox())

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "bpp.archive.game.imported", pub.sent[0].topic)
	assert.Equal(t, "7", pub.sent[0].key)

	var decoded domain.OutboxDraft
	require.NoError(t, json.Unmarshal(pub.sent[2].value, &decoded))
	assert.JSONEq(t, `{"n":2}`, string(decoded.Payload))
}

func TestOutboxRelay_StopsAtFirstFailure(t *testing.T) {
	store := memstore.New()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{failFrom: 1}

	relay := NewOutboxRelay(store, store.OutboxRepo(), pub, "bpp", 10, discardLogger())
	n, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.Outbox(), 2, "unpublished events stay queued")

	pub.failFrom = -1
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.Outbox())
}

func TestOutboxRelay_EmptyBatch(t *testing.T) {
	store := memstore.New()
	relay := NewOutboxRelay(store, store.OutboxRepo(), &fakePublisher{failFrom: -1}, "bpp", 10, discardLogger())
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
