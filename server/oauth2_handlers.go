package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// oauthError is the RFC 6749 error body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Authorize validates the client request and redirects to the provider
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := oauthmodel.AuthorizeRequest{
			Provider:    oauthmodel.ProviderType(q.Get("provider")),
			RedirectURI: q.Get("redirect_uri"),
			State:       q.Get("state"),
		}

		authURL, err := s.relay.Authorize(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// Token redeems a relay code for the provider tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		if err := r.ParseForm(); err != nil {
			writeJSONError(w, r, "invalid_request", "malformed form body", http.StatusBadRequest)
			return
		}

		req := oauthmodel.TokenRequest{
			GrantType:   oauthmodel.GrantType(r.PostForm.Get("grant_type")),
			Code:        r.PostForm.Get("code"),
			RedirectURI: r.PostForm.Get("redirect_uri"),
		}
		if raw := r.PostForm.Get("use_custom_token"); raw != "" {
			useCustomToken, err := strconv.ParseBool(raw)
			if err != nil {
				writeJSONError(w, r, "invalid_request", "use_custom_token must be a boolean", http.StatusBadRequest)
				return
			}
			req.UseCustomToken = useCustomToken
		}

		resp, err := s.relay.Redeem(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp)
	}
}

// AppleDomainAssociation serves the domain verification file Apple fetches for web sign in
func (s *Server) AppleDomainAssociation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		association := s.config.GetAppleDomainAssociation()
		if association == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentTypeText)
		_, _ = w.Write([]byte(association))
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

// writeError maps a relay error onto an OAuth JSON error. Internal causes are logged,
// never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("request_id", middleware.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSONError(w, r, apperrors.OAuthCode(err), apperrors.PublicMessage(err), status)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, code, description string, status int) {
	render.Status(r, status)
	render.JSON(w, r, oauthError{Error: code, ErrorDescription: description})
}
