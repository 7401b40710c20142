package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/version"
)

const (
	// DefaultAuthURL is the account login endpoint used by the Lightwave apps
	DefaultAuthURL = "https://auth.lightwaverf.com/v2/lightwaverf/autouserlogin/lwapps"

	// DefaultAPIURL is the base of the public REST API
	DefaultAPIURL = "https://publicapi.lightwaverf.com/v1"

	// DefaultAppID is sent in the x-lwrf-appid header
	DefaultAppID = "ios-01"

	// DefaultAppVersion is reported in the login body
	DefaultAppVersion = "1.6.8"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	// DefaultCacheDuration is how long a fetched structure is reused
	DefaultCacheDuration = 5 * time.Minute
)

// Client talks to the LightwaveRF cloud: account login, structure
// discovery and bulk feature reads.
type Client struct {
	// AuthURL is the login endpoint
	AuthURL string

	// APIURL is the REST API base, without a trailing slash
	APIURL string

	// AppID is sent as x-lwrf-appid on login
	AppID string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	// CacheDuration is how long to cache structures (0 = no cache)
	CacheDuration time.Duration

	mu     sync.RWMutex
	token  *oauth2.Token
	authed *http.Client
	cache  map[string]cachedStructure
}

type cachedStructure struct {
	structure *Structure
	fetched   time.Time
}

// NewClient creates a client for the production endpoints
func NewClient() *Client {
	return &Client{
		AuthURL:               DefaultAuthURL,
		APIURL:                DefaultAPIURL,
		AppID:                 DefaultAppID,
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		CacheDuration:         DefaultCacheDuration,
	}
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// SetToken installs a bearer token obtained earlier (e.g. from the saved
// session) without logging in again.
func (c *Client) SetToken(accessToken string) {
	c.setToken(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func (c *Client) setToken(tok *oauth2.Token) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.HTTPClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	authed.Timeout = c.HTTPClient.Timeout

	c.mu.Lock()
	c.token = tok
	c.authed = authed
	c.cache = nil
	c.mu.Unlock()
}

// Token returns the current access token, or "" before Login/SetToken.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

// Login exchanges the account credentials for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password, Version: DefaultAppVersion})
	if err != nil {
		return "", NewParseError("failed to encode login request", err)
	}

	resp, err := withRetry(ctx, c, func(ctx context.Context) (*loginResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL, bytes.NewReader(body))
		if err != nil {
			return nil, NewNetworkError("failed to create login request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-lwrf-appid", c.AppID)

		var out loginResponse
		if err := c.do(c.HTTPClient, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return "", err
	}

	if resp.Tokens.AccessToken == "" {
		return "", NewAuthError("login response carried no access token")
	}

	c.setToken(&oauth2.Token{AccessToken: resp.Tokens.AccessToken, TokenType: resp.Tokens.TokenType})
	logging.Info("Logged in to LightwaveRF cloud", zap.String("email", email))
	return resp.Tokens.AccessToken, nil
}

// Structures lists the ids of the structures on the account
func (c *Client) Structures(ctx context.Context) ([]string, error) {
	resp, err := withRetry(ctx, c, func(ctx context.Context) (*structuresResponse, error) {
		var out structuresResponse
		if err := c.api(ctx, http.MethodGet, "/structures", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Structures, nil
}

// Structure fetches one structure with its devices and features.
// Results are cached for CacheDuration.
func (c *Client) Structure(ctx context.Context, id string) (*Structure, error) {
	if c.CacheDuration > 0 {
		c.mu.RLock()
		cached, ok := c.cache[id]
		c.mu.RUnlock()
		if ok && time.Since(cached.fetched) < c.CacheDuration {
			return cached.structure, nil
		}
	}

	s, err := withRetry(ctx, c, func(ctx context.Context) (*Structure, error) {
		var out Structure
		if err := c.api(ctx, http.MethodGet, "/structure/"+url.PathEscape(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = id
	}

	if c.CacheDuration > 0 {
		c.mu.Lock()
		if c.cache == nil {
			c.cache = make(map[string]cachedStructure)
		}
		c.cache[id] = cachedStructure{structure: s, fetched: time.Now()}
		c.mu.Unlock()
	}
	return s, nil
}

// Features walks every structure on the account and returns all features.
func (c *Client) Features(ctx context.Context) ([]FeatureInfo, error) {
	ids, err := c.Structures(ctx)
	if err != nil {
		return nil, err
	}

	var all []FeatureInfo
	for _, id := range ids {
		s, err := c.Structure(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("structure %s: %w", id, err)
		}
		all = append(all, s.Features()...)
	}
	return all, nil
}

// ReadFeatures reads the current raw value of each feature in one call.
// Features the cloud does not report are absent from the result.
func (c *Client) ReadFeatures(ctx context.Context, ids []string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}

	reqBody := readFeaturesRequest{Features: make([]featureRef, len(ids))}
	for i, id := range ids {
		reqBody.Features[i] = featureRef{FeatureID: id}
	}

	values, err := withRetry(ctx, c, func(ctx context.Context) (map[string]int64, error) {
		out := make(map[string]int64)
		if err := c.api(ctx, http.MethodPost, "/features/read", reqBody, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	logging.Debug("Read features from cloud", zap.Int("requested", len(ids)), zap.Int("returned", len(values)))
	return values, nil
}

func (c *Client) api(ctx context.Context, method, path string, in, out any) error {
	c.mu.RLock()
	authed := c.authed
	c.mu.RUnlock()
	if authed == nil {
		return NewAuthError("not logged in")
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return NewParseError("failed to encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, body)
	if err != nil {
		return NewNetworkError("failed to create request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(authed, req, out)
}

// do performs a single attempt and decodes a 2xx JSON body into out
func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := hc.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("%s %s failed", req.Method, req.URL.Path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthError(fmt.Sprintf("request rejected with status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewParseError("failed to parse JSON response", err)
	}
	return nil
}

// withRetry runs attempt until it succeeds, returns a non-retryable error,
// MaxRetries is exhausted or ctx is done.
func withRetry[T any](ctx context.Context, c *Client, attempt func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	currentDelay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			timer := time.NewTimer(currentDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
			logging.Debug("Retrying cloud request", zap.Int("attempt", i+1), zap.Error(lastErr))
		}

		v, err := attempt(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
