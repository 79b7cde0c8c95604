// Package session builds the scs session manager and its storage backends.
package session

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

const CookieName = "metarticles_session"

// Options configures the session cookie and timeouts.
type Options struct {
	Lifetime    time.Duration
	IdleTimeout time.Duration
	Secure      bool
}

// NewManager creates a session manager on store.
func NewManager(store scs.Store, opts Options) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = opts.Lifetime
	if opts.IdleTimeout > 0 {
		sm.IdleTimeout = opts.IdleTimeout
	}
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = opts.Secure
	return sm
}
