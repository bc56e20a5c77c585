// Package overseerr talks to the request-manager API (Jellyseerr
// semantics) to keep its user list in step with the media server: import
// missing media-server accounts and reset their passwords from a shared
// secret.
package overseerr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/services"
)

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// User is an account known to the request manager.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	JellyfinID  string `json:"jellyfinUserId"`
}

// MediaUser is an account on the media server behind the request manager.
type MediaUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Client holds one authenticated session against the request manager.
type Client struct {
	baseURL     string
	mediaServer string
	http        HTTPDoer
	logger      *slog.Logger
}

// New builds a client. The session is cookie-based, so the default HTTP
// client carries a cookie jar; a custom doer is used as-is.
func New(cfg config.Users, doer HTTPDoer, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if doer == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "users", "build client", "cookie jar", err)
		}
		doer = &http.Client{Timeout: timeout, Jar: jar}
	}
	server := strings.ToLower(strings.TrimSpace(cfg.MediaServer))
	if server == "" {
		server = "jellyfin"
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		mediaServer: server,
		http:        doer,
		logger:      logging.NewComponentLogger(logger, "overseerr"),
	}, nil
}

// Status probes GET /api/v1/status.
func (c *Client) Status(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrConnectivity, "users", "status",
			fmt.Sprintf("request manager answered %d", resp.StatusCode), nil)
	}
	return nil
}

// Login authenticates the configured local account; the session cookie is
// kept in the client's jar for the rest of the run.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return services.Wrap(services.ErrTransient, "users", "login", "encode credentials", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/local", nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrConfiguration, "users", "login",
			fmt.Sprintf("authentication failed (%d)", resp.StatusCode), nil)
	}
	return nil
}

// Users lists every account the request manager knows.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	query := url.Values{}
	query.Set("take", "-1")
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/user", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "list users"); err != nil {
		return nil, err
	}

	var payload struct {
		Results []User `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "users", "list users", "decode response", err)
	}
	return payload.Results, nil
}

// MediaServerUsers lists the accounts on the media server.
func (c *Client) MediaServerUsers(ctx context.Context) ([]MediaUser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/settings/"+c.mediaServer+"/users", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "list media server users"); err != nil {
		return nil, err
	}

	var users []MediaUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, services.Wrap(services.ErrTransient, "users", "list media server users", "decode response", err)
	}
	return users, nil
}

// ImportUsers imports media-server accounts by id and returns the created
// request-manager users.
func (c *Client) ImportUsers(ctx context.Context, ids []string) ([]User, error) {
	body, err := json.Marshal(map[string][]string{c.mediaServer + "UserIds": ids})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "users", "import users", "encode request", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/user/import-from-"+c.mediaServer, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "import users"); err != nil {
		return nil, err
	}

	var created []User
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, services.Wrap(services.ErrTransient, "users", "import users", "decode response", err)
	}
	return created, nil
}

// SetPassword resets one user's local password.
func (c *Client) SetPassword(ctx context.Context, userID int64, password string) error {
	body, err := json.Marshal(map[string]string{"newPassword": password})
	if err != nil {
		return services.Wrap(services.ErrTransient, "users", "set password", "encode request", err)
	}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/user/%d/settings/password", userID), nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp, "set password")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "users", "build request", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "users", "request",
			fmt.Sprintf("%s %s after %s", method, endpoint, time.Since(start).Round(time.Millisecond)), err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "users", operation,
			fmt.Sprintf("session rejected (%d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "users", operation, "request manager answered 404", nil)
	default:
		return services.Wrap(services.ErrTransient, "users", operation,
			fmt.Sprintf("request manager answered %d", resp.StatusCode), nil)
	}
}
