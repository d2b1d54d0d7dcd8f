package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestLoadUnknownChatReturnsEmpty(t *testing.T) {
	store, _ := newTestStore(t, 0)

	messages, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	want := []Message{
		{Role: "user", Content: "show me lead 42"},
		{Role: "assistant", Content: "**Lead #42**", Agent: "LeadAgent"},
	}
	require.NoError(t, store.Save(ctx, "chat-1", want))

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl := mr.TTL("chat:chat-1")
	assert.Equal(t, time.Hour, ttl)
}

func TestAppendExtendsHistory(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", Message{Role: "user", Content: "hi"}))
	require.NoError(t, store.Append(ctx, "chat-1", Message{Role: "assistant", Content: "hello"}))

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[1].Content)
}

func TestSaveTrimsToNewestMessages(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	var messages []Message
	for i := 0; i < maxMessages+10; i++ {
		messages = append(messages, Message{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	require.NoError(t, store.Save(ctx, "chat-1", messages))

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, got, maxMessages)
	assert.Equal(t, "m10", got[0].Content, "oldest messages are dropped")
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "chat-1", []Message{{Role: "user", Content: "hi"}}))
	require.NoError(t, store.Clear(ctx, "chat-1"))

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpiredChatIsForgotten(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "chat-1", []Message{{Role: "user", Content: "hi"}}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
