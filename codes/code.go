// Package codes issues the one-time relay codes handed to clients after a provider
// callback. The provider tokens travel inside the code record as a sealed payload
// that only the redeem path can open.
package codes

import (
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-relay/ephemeral"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
)

// RedisKeyPrefix namespaces code keys when the store is shared through Redis.
const RedisKeyPrefix = "relay:code:"

// Payload is the content sealed into a Grant.
type Payload = oauthmodel.ProviderTokenBundle

// Grant is the stored code record.
type Grant struct {
	Code          string    `json:"code"`
	SessionID     string    `json:"session_id"`
	RedirectURI   string    `json:"redirect_uri"`
	SealedPayload string    `json:"sealed_payload"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Repo is the ephemeral store holding grants keyed by code.
type Repo = ephemeral.Repo[Grant]

// New returns a fresh opaque code.
func New() string {
	return uuid.NewString()
}
