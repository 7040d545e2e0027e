package outline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// colonFingerprint renders the server leaf fingerprint the way `openssl x509 -fingerprint` does.
func colonFingerprint(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	sum := sha256.Sum256(srv.Certificate().Raw)
	h := strings.ToLower(hex.EncodeToString(sum[:]))
	parts := make([]string, 0, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		parts = append(parts, h[i:i+2])
	}
	return strings.Join(parts, ":")
}

type recorded struct {
	method string
	path   string
	form   map[string]string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *recorder) {
	t.Helper()
	rc := &recorder{}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, form: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if assert.NoError(t, r.ParseMultipartForm(1<<16)) {
				for k, v := range r.MultipartForm.Value {
					rec.form[k] = v[0]
				}
			}
		}
		rc.mu.Lock()
		rc.calls = append(rc.calls, rec)
		rc.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rc
}

func TestClient_Operations(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/SECRET/access-keys" {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"17","name":"","accessUrl":"ss://abc@1.2.3.4:999/?outline=1"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := NewClient(Config{BaseURL: srv.URL + "/SECRET/", CertSHA256: colonFingerprint(t, srv)})
	ctx := context.Background()

	key, err := c.CreateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, AccessKey{ID: "17", AccessURL: "ss://abc@1.2.3.4:999/?outline=1"}, key)

	require.NoError(t, c.RenameKey(ctx, "17", "Aung Aung"))
	require.NoError(t, c.SetDataLimit(ctx, "17", 0))
	require.NoError(t, c.RemoveDataLimit(ctx, "17"))
	require.NoError(t, c.DeleteKey(ctx, "17"))

	got := calls.all()
	require.Len(t, got, 5)
	assert.Equal(t, recorded{http.MethodPut, "/SECRET/access-keys/17/name", map[string]string{"name": "Aung Aung"}}, got[1])
	assert.Equal(t, recorded{http.MethodPut, "/SECRET/access-keys/17/data-limit", map[string]string{"limit.bytes": "0"}}, got[2])
	assert.Equal(t, http.MethodDelete, got[3].method)
	assert.Equal(t, "/SECRET/access-keys/17/data-limit", got[3].path)
	assert.Equal(t, http.MethodDelete, got[4].method)
	assert.Equal(t, "/SECRET/access-keys/17", got[4].path)
}

func TestClient_NumericKeyID(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"accessUrl":"ss://x"}`))
	})
	c := NewClient(Config{BaseURL: srv.URL, CertSHA256: colonFingerprint(t, srv)})

	key, err := c.CreateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", key.ID)
}

func TestClient_NonSuccessIsAPIError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Access key \"9\" not found", http.StatusNotFound)
	})
	c := NewClient(Config{BaseURL: srv.URL, CertSHA256: colonFingerprint(t, srv)})

	err := c.DeleteKey(context.Background(), "9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, `outline api error 404: Access key "9" not found`, err.Error())
}

func TestClient_FingerprintMismatch(t *testing.T) {
	var hits atomic.Int32
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	c := NewClient(Config{BaseURL: srv.URL, CertSHA256: strings.Repeat("AB:", 31) + "AB"})

	_, err := c.CreateKey(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint mismatch")
	assert.Zero(t, hits.Load())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := NewClient(Config{
		BaseURL:       srv.URL,
		CertSHA256:    colonFingerprint(t, srv),
		FailThreshold: 2,
		OpenFor:       time.Hour,
	})
	ctx := context.Background()

	require.Error(t, c.DeleteKey(ctx, "1"))
	require.Error(t, c.DeleteKey(ctx, "1"))
	err := c.DeleteKey(ctx, "1")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())
}

func TestNormalizeFingerprint(t *testing.T) {
	assert.Equal(t, "AB01CD", NormalizeFingerprint(" ab:01:cd "))
}
