package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-relay/ephemeral"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	s1 := sessions.New(oauthmodel.GoogleProvider, "app://cb", nil, now, 300*time.Second)
	s2 := sessions.New(oauthmodel.GoogleProvider, "app://cb", nil, now, 300*time.Second)

	require.NotEmpty(t, s1.ID)
	require.NotEqual(t, s1.ID, s2.ID)
	require.Nil(t, s1.ClientState)
	require.Equal(t, now.Add(5*time.Minute), s1.ExpiresAt)
}

func TestRepoRoundTrip(t *testing.T) {
	var repo sessions.Repo = ephemeral.NewInMemoryRepo[sessions.Session]()
	state := "xyz"
	s := sessions.New(oauthmodel.AppleProvider, "https://app.example.com/cb", &state, time.Now(), time.Minute)

	require.NoError(t, repo.Put(context.Background(), s.ID, s, time.Minute))

	got, ok, err := repo.Take(context.Background(), s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s, got)
}
