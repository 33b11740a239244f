// Package auth manages the bearer-token lifecycle for the build
// distribution service: it obtains application tokens with Basic
// credentials, caches them through a pluggable [Store], and reuses
// them until expiry so repeated calls stay off the network.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// expirySkew shaves a few seconds off the server-reported token
// lifetime so a token never expires mid-flight.
const expirySkew = 2 * time.Second

// maxErrBodySize caps the amount of response body retained in errors.
const maxErrBodySize = 4 << 10 // 4KB

// ErrUnauthorized is returned when the identity endpoint rejects the
// credentials with 401 or 403. It is never retried automatically.
var ErrUnauthorized = errors.New("could not authorize, check user credentials")

// Credentials hold the application's identity pair. They are supplied
// by the caller; this package never persists them.
type Credentials struct {
	UserID     string
	UserSecret string
}

// Token is a bearer token plus its absolute expiry.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Valid reports whether the token is usable at the given time.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Unix() < t.ExpiresAt
}

// StatusError is returned when the identity endpoint responds with a
// non-success status other than 401/403.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("token request failed with status %d, body: %s", e.StatusCode, e.Body)
}

// DecodeError is returned when the identity endpoint's success body
// cannot be decoded into a token. Body retains the raw (truncated)
// response for diagnostics.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding token response: %v, body: %s", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Manager obtains and refreshes tokens against one identity endpoint.
// It consults its Store before every network call, making EnsureToken
// idempotent within a token's validity window.
type Manager struct {
	url    string
	creds  Credentials
	store  Store
	client *http.Client
	logger *slog.Logger
}

// NewManager returns a Manager posting to the given identity endpoint
// URL. A nil store falls back to in-memory caching for the lifetime of
// the Manager.
func NewManager(url string, creds Credentials, store Store, client *http.Client, logger *slog.Logger) *Manager {
	if store == nil {
		store = &memStore{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		url:    url,
		creds:  creds,
		store:  store,
		client: client,
		logger: logger,
	}
}

// EnsureToken returns a usable token, hitting the identity endpoint
// only when the cached one is absent or expired. Cache persist
// failures are logged and swallowed; the freshly obtained token is
// still returned.
func (m *Manager) EnsureToken(ctx context.Context) (Token, error) {
	if tok, ok := m.store.Load(); ok && tok.Valid(time.Now()) {
		return tok, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, nil)
	if err != nil {
		return Token{}, fmt.Errorf("instantiating token request: %w", err)
	}
	req.SetBasicAuth(m.creds.UserID, m.creds.UserSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("requesting token: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			m.logger.Error("failed to close token response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Token{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return Token{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       readErrBody(resp.Body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("reading token response: %w", err)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return Token{}, &DecodeError{Body: truncate(body), Err: err}
	}
	if grant.AccessToken == "" {
		return Token{}, &DecodeError{Body: truncate(body), Err: errors.New("missing access_token")}
	}

	tok := Token{
		AccessToken: grant.AccessToken,
		ExpiresIn:   grant.ExpiresIn,
		ExpiresAt:   time.Now().Add(time.Duration(grant.ExpiresIn)*time.Second - expirySkew).Unix(),
	}

	if err := m.store.Save(tok); err != nil {
		m.logger.Warn("persisting token failed, continuing with in-memory token", "error", err)
	}

	return tok, nil
}

func readErrBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrBodySize))
	if err != nil {
		return "unable to read body"
	}

	return string(b)
}

func truncate(b []byte) string {
	if len(b) > maxErrBodySize {
		b = b[:maxErrBodySize]
	}

	return string(b)
}
