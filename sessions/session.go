package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-relay/ephemeral"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
)

// RedisKeyPrefix namespaces session keys when the store is shared through Redis.
const RedisKeyPrefix = "relay:session:"

// Session stores the authorize request while the user is at the provider.
// Sessions are short-lived (5 minutes by default) and are consumed by the first
// callback that carries their id as state.
type Session struct {
	ID          string                  `json:"id"`                     // Unique session identifier (UUID), sent to the provider as state
	Provider    oauthmodel.ProviderType `json:"provider"`               // Provider chosen at authorize time
	RedirectURI string                  `json:"redirect_uri"`           // Client redirect URI
	ClientState *string                 `json:"client_state,omitempty"` // Client state, nil when the client sent none
	ExpiresAt   time.Time               `json:"expires_at"`             // Absolute expiry
}

// Repo is the ephemeral store holding sessions keyed by ID.
type Repo = ephemeral.Repo[Session]

func New(provider oauthmodel.ProviderType, redirectURI string, clientState *string, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:          uuid.NewString(),
		Provider:    provider,
		RedirectURI: redirectURI,
		ClientState: clientState,
		ExpiresAt:   now.Add(ttl),
	}
}
