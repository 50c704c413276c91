package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenyhq/ragserve/internal/models"
)

func msg(session, company, sender, text string, at time.Time) models.ChatMessage {
	return models.ChatMessage{
		Message:   text,
		Sender:    sender,
		SessionID: session,
		CompanyID: company,
		Timestamp: at,
	}
}

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, "s1", msg("s1", "acme", "user", "hello", now)))
	require.NoError(t, s.Append(ctx, "s1", msg("s1", "acme", "bot", "hi there", now.Add(time.Second))))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Message)
	assert.Equal(t, "user", history[0].Sender)
	assert.Equal(t, "bot", history[1].Sender)
}

func TestMemoryStoreHistoryIsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Append(ctx, "s1", msg("s1", "acme", "user", "original", time.Now())))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	history[0].Message = "mutated"

	again, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Message)
}

func TestMemoryStoreUnknownSessionEmpty(t *testing.T) {
	s := NewMemoryStore()

	history, err := s.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Append(ctx, "s1", msg("s1", "acme", "user", "hello", time.Now())))
	require.NoError(t, s.Clear(ctx, "s1"))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, "a", msg("a", "acme", "user", "q1", now)))
	require.NoError(t, s.Append(ctx, "a", msg("a", "acme", "bot", "a1", now.Add(time.Minute))))
	require.NoError(t, s.Append(ctx, "b", msg("b", "globex", "user", "q2", now)))

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "a", summaries[0].SessionID)
	assert.Equal(t, "acme", summaries[0].CompanyID)
	assert.Equal(t, 2, summaries[0].MessageCount)
	assert.Equal(t, now.Add(time.Minute), summaries[0].LastActivity)
	assert.Equal(t, "globex", summaries[1].CompanyID)
}
