package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRabbitMQQueue() (*RabbitMQQueue, *[]Announcement) {
	var published []Announcement
	q := &RabbitMQQueue{name: "announcements", log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	q.republish = func(_ context.Context, a Announcement) error {
		published = append(published, a)
		return nil
	}
	return q, &published
}

func TestRabbitMQHandleRepublishesFailedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, published := newTestRabbitMQQueue()
	failing := func(context.Context, Announcement) error { return errors.New("telegram unavailable") }

	q.handle(ctx, []byte(`{"chat_id":7,"text":"flaky"}`), failing)
	require.Len(t, *published, 1)
	assert.Equal(t, Announcement{ChatID: 7, Text: "flaky", Attempt: 1}, (*published)[0])

	q.handle(ctx, []byte(`{"chat_id":7,"text":"flaky","attempt":1}`), failing)
	assert.Len(t, *published, 1, "a retried announcement is not published again")
}

func TestRabbitMQHandleDelivers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, published := newTestRabbitMQQueue()

	var got []Announcement
	ok := func(_ context.Context, a Announcement) error {
		got = append(got, a)
		return nil
	}
	q.handle(ctx, []byte(`{"chat_id":1,"text":"hello","caption":"c"}`), ok)
	q.handle(ctx, []byte(`{broken`), ok)

	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "c", got[0].Caption)
	assert.Empty(t, *published)
}

func TestRabbitMQCloseWithoutConnection(t *testing.T) {
	t.Parallel()
	var q *RabbitMQQueue
	assert.NoError(t, q.Close())
}
