// Package outline is a client for the Outline VPN server management API.
package outline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmehdipour/outline-admin/internal/metrics"
)

var (
	ErrCircuitOpen         = errors.New("outline: circuit open")
	ErrFingerprintMismatch = errors.New("outline: certificate fingerprint mismatch")
	ErrNoCertificate       = errors.New("outline: server certificate missing")
)

// APIError is a non-2xx answer from the management API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("outline api error %d: %s", e.StatusCode, body)
}

// IsNotFound reports whether err is a 404 from the management API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// AccessKey is the subset of the access key resource the admin needs.
type AccessKey struct {
	ID        string
	AccessURL string
}

type Config struct {
	BaseURL       string // includes the secret path prefix
	CertSHA256    string // hex, colons allowed; empty means regular chain verification
	Timeout       time.Duration
	FailThreshold int
	OpenFor       time.Duration
}

// Client talks to one Outline server. The underlying *http.Client is built once,
// on first use, and never mutated afterwards.
type Client struct {
	baseURL     string
	fingerprint string
	timeout     time.Duration
	br          *MicroBreaker

	once sync.Once
	hc   *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 15 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		fingerprint: NormalizeFingerprint(cfg.CertSHA256),
		timeout:     cfg.Timeout,
		br:          NewMicroBreaker(cfg.FailThreshold, cfg.OpenFor),
	}
}

// NormalizeFingerprint strips colons and upper-cases a hex SHA-256 fingerprint.
func NormalizeFingerprint(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ":", ""))
}

func (c *Client) httpClient() *http.Client {
	c.once.Do(func() {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if c.fingerprint != "" {
			tr.TLSClientConfig = pinnedTLSConfig(c.fingerprint)
		}
		c.hc = &http.Client{Timeout: c.timeout, Transport: tr}
	})
	return c.hc
}

// pinnedTLSConfig accepts exactly the leaf certificate whose SHA-256 matches want.
// The server is reached by IP with a self-signed certificate, so chain and
// hostname verification are replaced by the pin.
func pinnedTLSConfig(want string) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // VerifyConnection pins the leaf certificate
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return ErrNoCertificate
			}
			sum := sha256.Sum256(cs.PeerCertificates[0].Raw)
			if strings.ToUpper(hex.EncodeToString(sum[:])) != want {
				return ErrFingerprintMismatch
			}
			return nil
		},
	}
}

// CreateKey creates a new access key with server defaults.
func (c *Client) CreateKey(ctx context.Context) (AccessKey, error) {
	body, err := c.do(ctx, "create", http.MethodPost, "/access-keys", nil, "")
	if err != nil {
		return AccessKey{}, err
	}

	var out struct {
		ID        json.RawMessage `json:"id"`
		AccessURL string          `json:"accessUrl"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return AccessKey{}, fmt.Errorf("outline: decode access key: %w", err)
	}
	// the server has answered with both string and numeric ids
	id := strings.Trim(string(out.ID), `"`)
	if id == "" || id == "null" {
		return AccessKey{}, errors.New("outline: access key without id")
	}

	return AccessKey{ID: id, AccessURL: out.AccessURL}, nil
}

// RenameKey sets the display name of a key.
func (c *Client) RenameKey(ctx context.Context, id, name string) error {
	return c.doForm(ctx, "rename", http.MethodPut, keyPath(id, "/name"), "name", name)
}

// DeleteKey removes a key. A missing key is reported as an *APIError with status 404.
func (c *Client) DeleteKey(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, keyPath(id, ""), nil, "")
	return err
}

// SetDataLimit caps the key's transfer quota; 0 cuts the device off.
func (c *Client) SetDataLimit(ctx context.Context, id string, limitBytes int64) error {
	return c.doForm(ctx, "set_limit", http.MethodPut, keyPath(id, "/data-limit"), "limit.bytes", strconv.FormatInt(limitBytes, 10))
}

// RemoveDataLimit clears the key's quota.
func (c *Client) RemoveDataLimit(ctx context.Context, id string) error {
	_, err := c.do(ctx, "remove_limit", http.MethodDelete, keyPath(id, "/data-limit"), nil, "")
	return err
}

func keyPath(id, suffix string) string {
	return "/access-keys/" + id + suffix
}

func (c *Client) doForm(ctx context.Context, op, method, path, field, value string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(field, value); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	_, err := c.do(ctx, op, method, path, &buf, mw.FormDataContentType())
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if !c.br.TryAcquire() {
		metrics.OutlineRequestsTotal.WithLabelValues(op, "open").Inc()
		return nil, ErrCircuitOpen
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	res, err := c.httpClient().Do(req)
	if err != nil {
		c.br.OnFailure()
		metrics.OutlineRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("outline %s: %w", op, err)
	}

	defer res.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	metrics.OutlineRequestsTotal.WithLabelValues(op, strconv.Itoa(res.StatusCode)).Inc()

	if res.StatusCode/100 != 2 {
		// only server-side failures count against the breaker
		if res.StatusCode >= 500 {
			c.br.OnFailure()
		} else {
			c.br.OnSuccess()
		}
		return nil, &APIError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	c.br.OnSuccess()

	return data, nil
}
