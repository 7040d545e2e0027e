package session

import (
	"net/http"
	"time"
)

// CookieName is shared with the dashboard front-end.
const CookieName = "outline_admin_session"

// NewCookie returns the cookie carrying token. secure is set in production.
func NewCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(Lifetime / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie on the client.
func ClearCookie(secure bool) *http.Cookie {
	c := NewCookie("", secure)
	c.MaxAge = -1
	return c
}

// TokenFromRequest returns the session token or "" when the cookie is absent.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// FromRequest verifies the session carried by r.
func FromRequest(r *http.Request, secret string, now time.Time) (Payload, error) {
	if secret == "" {
		return Payload{}, ErrMalformed
	}
	token := TokenFromRequest(r)
	if token == "" {
		return Payload{}, ErrMalformed
	}
	return Verify(token, secret, now)
}
