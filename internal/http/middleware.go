package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/auth"
	"github.com/fjod/foodcart/internal/storefront"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "sid"
)

type sessionKey struct{}

// SessionSource opens browsing sessions by id.
type SessionSource interface {
	Session(ctx context.Context, id string) (*storefront.Session, error)
}

// AuthMiddleware forwards the caller's bearer credential to the backend
// client. Validation is the backend's job.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
			r = r.WithContext(auth.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// SessionMiddleware resolves the browsing session from the X-Session-ID
// header or the sid cookie and issues a new id when neither is present.
func SessionMiddleware(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				if c, err := r.Cookie(SessionCookie); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = storefront.NewSessionID()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, id)

			s, err := sessions.Session(r.Context(), id)
			if err != nil {
				log.Error().Err(err).Str("session_id", id).Msg("failed to open session")
				respondError(w, http.StatusInternalServerError, "session_unavailable", "session could not be opened")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
		})
	}
}

func sessionFromContext(ctx context.Context) *storefront.Session {
	s, _ := ctx.Value(sessionKey{}).(*storefront.Session)
	return s
}

// AccessLog writes one zerolog line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
