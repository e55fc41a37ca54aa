package iracing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://members-ng.iracing.com"
	defaultAuthTTL = time.Hour
)

var errUnauthorized = errors.New("iracing: session rejected")

// Config holds the credentials and endpoints of the data API.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	AuthTTL  time.Duration
}

// Client talks to the iRacing data API with a cookie session.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	authExpires time.Time
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("iracing: username and password are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AuthTTL <= 0 {
		cfg.AuthTTL = defaultAuthTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("iracing: cookie jar: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Jar: jar},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// HashPassword encodes the password the way the auth endpoint expects:
// base64(sha256(password + lowercase(username))).
func HashPassword(password, username string) string {
	sum := sha256.Sum256([]byte(password + strings.ToLower(username)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (c *Client) authenticate(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.now().Before(c.authExpires) {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.cfg.Username,
		"password": HashPassword(c.cfg.Password, c.cfg.Username),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.authExpires = time.Time{}
		return fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	c.authExpires = c.now().Add(c.cfg.AuthTTL)
	c.logger.Info("authenticated with iracing")
	return nil
}

// getData performs an authenticated GET and decodes the JSON payload into
// out, following a {"link": ...} indirection when the API returns one.
func (c *Client) getData(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.authenticate(ctx, false); err != nil {
		return err
	}

	body, err := c.get(ctx, c.cfg.BaseURL+path+"?"+query.Encode())
	if errors.Is(err, errUnauthorized) {
		if err := c.authenticate(ctx, true); err != nil {
			return err
		}
		body, err = c.get(ctx, c.cfg.BaseURL+path+"?"+query.Encode())
	}
	if err != nil {
		return err
	}

	var indirect struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(body, &indirect); err == nil && indirect.Link != "" {
		body, err = c.get(ctx, indirect.Link)
		if err != nil {
			return err
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("request %s failed with status %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}
