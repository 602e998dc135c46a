package relay

import (
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logFlow(sessionID string, provider oauthmodel.ProviderType, state FlowState) *zerolog.Event {
	event := log.Info()
	if state == FlowFailed || state == FlowExpired {
		event = log.Warn()
	}
	return event.
		Str("session_id", sessionID).
		Str("provider", string(provider)).
		Str("state", string(state))
}
