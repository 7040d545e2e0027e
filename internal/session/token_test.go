package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t-for-tests"

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestIssueVerify_RoundTrip(t *testing.T) {
	tok := Issue(testSecret, t0)

	p, err := Verify(tok, testSecret, t0.Add(Lifetime-time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, t0.UnixMilli(), p.IssuedAt)
	assert.Equal(t, t0.Add(Lifetime).UnixMilli(), p.ExpiresAt)

	// still valid at exactly exp, invalid one millisecond after
	_, err = Verify(tok, testSecret, t0.Add(Lifetime))
	require.NoError(t, err)
	_, err = Verify(tok, testSecret, t0.Add(Lifetime+time.Millisecond))
	require.ErrorIs(t, err, ErrExpired)
}

func TestIssue_Format(t *testing.T) {
	tok := Issue(testSecret, t0)
	payload, sig, ok := strings.Cut(tok, ".")
	require.True(t, ok)

	assert.NotContains(t, payload, "=")
	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"iat":1780300800000,"exp":1780905600000}`, string(raw))
}

func TestVerify_EverySignatureBitFlipIsRejected(t *testing.T) {
	tok := Issue(testSecret, t0)
	dot := strings.IndexByte(tok, '.')

	for i := dot + 1; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[i] ^= 1 << bit
			_, err := Verify(string(b), testSecret, t0)
			require.Error(t, err, "flip byte %d bit %d accepted", i, bit)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	good := Issue(testSecret, t0)
	payload, sig, _ := strings.Cut(good, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":1,"exp":99999999999999}`))
	noExp := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":1}`))
	strExp := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":1,"exp":"99999999999999"}`))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", payload + sig},
		{"missing payload", "." + sig},
		{"missing signature", payload + "."},
		{"extra separator", good + ".x"},
		{"wrong secret", Issue("other", t0)},
		{"forged payload", forged + "." + sig},
		{"truncated signature", payload + "." + sig[:63]},
		{"missing exp", noExp + "." + sign(noExp, testSecret)},
		{"string exp", strExp + "." + sign(strExp, testSecret)},
		{"not json", "bm90LWpzb24." + sign("bm90LWpzb24", testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Valid(tt.token, testSecret, t0))
		})
	}
}

func TestEqual(t *testing.T) {
	a := []byte("0123456789abcdef")

	assert.True(t, Equal(a, []byte("0123456789abcdef")))
	// mismatch at the first and at the last byte are both rejected
	assert.False(t, Equal(a, []byte("x123456789abcdef")))
	assert.False(t, Equal(a, []byte("0123456789abcdex")))
	assert.False(t, Equal(a, a[:15]))
	assert.False(t, Equal(a, append([]byte("0123456789abcdef"), 'x')))
}

func TestVerifyAdminPassword(t *testing.T) {
	assert.True(t, VerifyAdminPassword("hunter22", "hunter22"))
	assert.False(t, VerifyAdminPassword("hunter23", "hunter22"))
	assert.False(t, VerifyAdminPassword("hunter2", "hunter22"))
	assert.False(t, VerifyAdminPassword("hunter222", "hunter22"))
	assert.False(t, VerifyAdminPassword("", ""))
}

func TestCookies(t *testing.T) {
	c := NewCookie("tok", true)
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	rec := httptest.NewRecorder()
	http.SetCookie(rec, ClearCookie(false))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
	_, err := FromRequest(req, testSecret, t0)
	require.Error(t, err)

	req.AddCookie(NewCookie(Issue(testSecret, t0), false))
	_, err = FromRequest(req, testSecret, t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = FromRequest(req, "", t0)
	require.Error(t, err)
}
