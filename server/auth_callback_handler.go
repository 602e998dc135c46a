package server

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-relay/internal/utils"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/rs/zerolog/log"
)

type callbackPageData struct {
	Provider    string
	RedirectURL template.URL
}

// ProviderCallback handles the provider redirect. r.FormValue covers both the query
// parameters of a GET callback and the form body of a form_post callback.
func (s *Server) ProviderCallback(provider oauthmodel.ProviderType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.CallbackParams{
			Code:             r.FormValue("code"),
			State:            r.FormValue("state"),
			Error:            r.FormValue("error"),
			ErrorDescription: r.FormValue("error_description"),
		}

		result, err := s.relay.Callback(r.Context(), provider, params)
		if err != nil {
			writeError(w, r, err)
			return
		}

		redirectURL, err := clientRedirectURL(result)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		err = s.callbackPage.Execute(w, callbackPageData{
			Provider: provider.String(),
			// Custom schemes were checked at authorize; html/template would otherwise
			// replace them with #ZgotmplZ.
			RedirectURL: template.URL(redirectURL),
		})
		if err != nil {
			log.Err(err).Str("provider", provider.String()).Msg("Failed to render callback page")
		}
	}
}

// clientRedirectURL appends the relay code and the client's state to its redirect URI.
func clientRedirectURL(result *oauthmodel.CallbackResult) (string, error) {
	u, err := url.Parse(result.RedirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", result.Code)
	if state := utils.Value(result.State); state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
