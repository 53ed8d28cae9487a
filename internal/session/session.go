// Package session reads and writes the identity cookie that carries the
// registering user's id between registration steps.
//
// The cookie name contains a colon, which net/http treats as an invalid
// token: http.SetCookie drops it and Request.Cookie skips it. The header is
// therefore formatted and parsed here.
package session

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// CookieName is the identity cookie's name.
	CookieName = "app:userId"
	// MaxAge is the cookie lifetime.
	MaxAge = 7 * 24 * time.Hour
)

// Cookie describes an identity cookie to issue.
type Cookie struct {
	UserID string
	Secure bool
}

// String renders the Set-Cookie header value.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(CookieName)
	b.WriteByte('=')
	b.WriteString(c.UserID)
	b.WriteString("; Path=/; Max-Age=")
	b.WriteString(strconv.Itoa(int(MaxAge.Seconds())))
	b.WriteString("; HttpOnly; SameSite=Lax")
	if c.Secure {
		b.WriteString("; Secure")
	}
	return b.String()
}

// Set adds the identity cookie to the response headers.
func Set(w http.ResponseWriter, c Cookie) {
	w.Header().Add("Set-Cookie", c.String())
}

// FromRequest returns the user id carried by the request's Cookie headers.
func FromRequest(r *http.Request) (string, bool) {
	for _, line := range r.Header.Values("Cookie") {
		for _, part := range strings.Split(line, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && name == CookieName && validValue(value) {
				return value, true
			}
		}
	}
	return "", false
}

// FromResponse returns the user id from a Set-Cookie header, if the response
// issued one.
func FromResponse(resp *http.Response) (string, bool) {
	for _, line := range resp.Header.Values("Set-Cookie") {
		pair, _, _ := strings.Cut(line, ";")
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && name == CookieName && validValue(value) {
			return value, true
		}
	}
	return "", false
}

// Attach adds the identity cookie to an outgoing request.
func Attach(r *http.Request, userID string) {
	pair := CookieName + "=" + userID
	if existing := r.Header.Get("Cookie"); existing != "" {
		pair = existing + "; " + pair
	}
	r.Header.Set("Cookie", pair)
}

func validValue(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c <= 0x20 || c >= 0x7f || c == '"' || c == ',' || c == ';' || c == '\\' {
			return false
		}
	}
	return true
}
