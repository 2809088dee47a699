package session

import (
	"net/http"
	"time"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "USER_SESSION"

// CookieConfig configures a [CookieManager].
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	// MaxAge is the cookie lifetime; it should equal the token lifetime.
	MaxAge time.Duration
}

// CookieManager writes and clears the session cookie.
type CookieManager struct {
	cfg CookieConfig
}

// NewCookieManager fills defaults (name USER_SESSION, path "/") and returns a manager.
func NewCookieManager(cfg CookieConfig) *CookieManager {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieManager{cfg: cfg}
}

// Name returns the cookie name.
func (m *CookieManager) Name() string {
	return m.cfg.Name
}

// Attach sets the session cookie carrying token.
func (m *CookieManager) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Name,
		Value:    token,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		MaxAge:   int(m.cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	})
}

// Value returns the session token carried by r, if any.
func (m *CookieManager) Value(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Clear expires the session cookie when r carries one. It reports whether a cookie
// was found.
func (m *CookieManager) Clear(r *http.Request, w http.ResponseWriter) bool {
	if _, err := r.Cookie(m.cfg.Name); err != nil {
		return false
	}
	// MaxAge < 0 makes net/http emit "Max-Age=0".
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Name,
		Value:    "",
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	})
	return true
}
