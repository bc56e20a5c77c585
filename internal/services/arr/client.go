// Package arr implements the managed-library v3 API surface reelsync
// depends on: readiness probing, manual import discovery, catalog lookup,
// entity add/remove, and the ManualImport command. Radarr and Sonarr share
// this surface; the endpoint name and identity field differ per service.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/services"
)

// ErrAlreadyExists is returned by Add when the service already tracks the
// title under a different catalog identity. The repair loop treats this as
// "try the next ranked result".
var ErrAlreadyExists = errors.New("entity already exists with a different identity")

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one managed-library service.
type Client struct {
	baseURL  string
	apiKey   string
	endpoint string // lookup/add resource: "movie" or "series"
	name     string
	http     HTTPDoer
	logger   *slog.Logger
}

// New builds a client for the given service configuration. With a nil
// doer a default client using timeout is constructed.
func New(service config.Service, doer HTTPDoer, timeout time.Duration, logger *slog.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(service.URL, "/"),
		apiKey:   service.APIKey,
		endpoint: service.Endpoint,
		name:     service.DisplayName,
		http:     doer,
		logger:   logging.NewComponentLogger(logger, "arr"),
	}
}

// Name returns the service display name for logs and reports.
func (c *Client) Name() string { return c.name }

// Endpoint returns the catalog resource name ("movie" or "series").
func (c *Client) Endpoint() string { return c.endpoint }

// SystemStatus probes GET /api/v3/system/status. Any non-200 answer or
// transport failure is a connectivity error.
func (c *Client) SystemStatus(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/v3/system/status", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrConnectivity, "reconcile", "system status",
			fmt.Sprintf("%s answered %d", c.name, resp.StatusCode), nil)
	}
	return nil
}

// ManualImport fetches the import candidates the service discovered for a
// folder.
func (c *Client) ManualImport(ctx context.Context, folder string) ([]Candidate, error) {
	query := url.Values{}
	query.Set("folder", folder)
	query.Set("filterExistingFiles", "true")

	resp, err := c.do(ctx, http.MethodGet, "/api/v3/manualimport", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "manual import"); err != nil {
		return nil, err
	}

	var candidates []Candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, services.Wrap(services.ErrTransient, "reconcile", "manual import",
			fmt.Sprintf("decode %s response", c.name), err)
	}
	return candidates, nil
}

// Lookup searches the upstream catalog for term and returns the results
// ranked best-first: movies by popularity, series by vote count, both
// descending with the original order preserved on ties.
func (c *Client) Lookup(ctx context.Context, term string) ([]LookupResult, error) {
	query := url.Values{}
	query.Set("term", term)

	resp, err := c.do(ctx, http.MethodGet, "/api/v3/"+c.endpoint+"/lookup", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "lookup"); err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, services.Wrap(services.ErrTransient, "reconcile", "lookup",
			fmt.Sprintf("decode %s response", c.name), err)
	}
	results := make([]LookupResult, 0, len(raws))
	for _, raw := range raws {
		var result LookupResult
		if err := json.Unmarshal(raw, &result); err != nil {
			continue
		}
		result.Raw = raw
		results = append(results, result)
	}
	rankResults(c.endpoint, results)
	return results, nil
}

// Add registers a lookup result with the service. The raw catalog payload
// is resubmitted with the configured root folder and quality profile, and
// without monitoring so the add never triggers an upstream search.
func (c *Client) Add(ctx context.Context, result LookupResult, rootDir string, qualityProfileID int) (int64, error) {
	payload := map[string]any{}
	if len(result.Raw) > 0 {
		if err := json.Unmarshal(result.Raw, &payload); err != nil {
			return 0, services.Wrap(services.ErrTransient, "reconcile", "add", "rebuild lookup payload", err)
		}
	}
	payload["rootFolderPath"] = rootDir
	payload["qualityProfileId"] = qualityProfileID
	payload["monitored"] = false
	payload["addOptions"] = map[string]any{"searchForMovie": false, "searchForMissingEpisodes": false}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "reconcile", "add", "encode add payload", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v3/"+c.endpoint, nil, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isIdentityConflict(string(text)) {
			return 0, fmt.Errorf("%w: %s: %s", ErrAlreadyExists, result.Title, strings.TrimSpace(string(text)))
		}
		return 0, services.Wrap(services.ErrValidation, "reconcile", "add",
			fmt.Sprintf("%s rejected %q: %s", c.name, result.Title, strings.TrimSpace(string(text))), nil)
	}
	if err := c.checkStatus(resp, "add"); err != nil {
		return 0, err
	}

	var added struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return 0, services.Wrap(services.ErrTransient, "reconcile", "add",
			fmt.Sprintf("decode %s response", c.name), err)
	}
	c.logger.Debug("catalog entry added",
		logging.String("service", c.name),
		logging.String("title", result.Title),
		logging.Int64("id", added.ID),
	)
	return added.ID, nil
}

// Delete removes a catalog entity and its files. Used to roll back repair
// attempts that did not resolve the rejection.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := url.Values{}
	query.Set("deleteFiles", "true")

	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/%s/%d", c.endpoint, id), query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.checkStatus(resp, "delete")
}

// ManualImportCommand submits one move-mode import command covering all
// accepted candidates.
func (c *Client) ManualImportCommand(ctx context.Context, candidates []Candidate) error {
	files := make([]map[string]any, 0, len(candidates))
	for _, candidate := range candidates {
		files = append(files, candidate.importFile())
	}
	payload := map[string]any{
		"name":                "ManualImport",
		"files":               files,
		"importMode":          "move",
		"filterExistingFiles": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, "reconcile", "import command", "encode command payload", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v3/command", nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp, "import command")
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
		return nil, services.Wrap(services.ErrTransient, "reconcile", "build request", endpoint, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "reconcile", "request",
			fmt.Sprintf("%s %s after %s", method, endpoint, time.Since(start).Round(time.Millisecond)), err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "reconcile", operation,
			fmt.Sprintf("%s rejected the API key (%d)", c.name, resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "reconcile", operation,
			fmt.Sprintf("%s answered 404", c.name), nil)
	case resp.StatusCode == http.StatusBadRequest:
		return services.Wrap(services.ErrValidation, "reconcile", operation,
			fmt.Sprintf("%s answered 400", c.name), nil)
	default:
		return services.Wrap(services.ErrTransient, "reconcile", operation,
			fmt.Sprintf("%s answered %d", c.name, resp.StatusCode), nil)
	}
}

func isIdentityConflict(body string) bool {
	lowered := strings.ToLower(body)
	return strings.Contains(lowered, "already been added") ||
		strings.Contains(lowered, "already exists")
}
