package session

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, clockwork.NewFakeClock())

	require.NoError(t, store.Put(ctx, &Session{ID: "abc", Email: "aina@example.com", Role: RoleAdmin}))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "aina@example.com", got.Email)
	require.True(t, got.IsAdmin())

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(time.Minute, clock)
	require.NoError(t, store.Put(ctx, &Session{ID: "abc"}))

	clock.Advance(59 * time.Second)
	_, err := store.Get(ctx, "abc")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	require.Equal(t, "Aina", (&Session{FullName: " Aina ", Email: "a@x"}).DisplayName())
	require.Equal(t, "a@x", (&Session{Email: "a@x"}).DisplayName())
	require.Equal(t, "", (*Session)(nil).DisplayName())
}
