// Package github implements commit discovery via the GitHub search API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"commitbot/internal/model"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

const maxResponseBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the GitHub commit search and users endpoints.
type Client struct {
	client  HTTPClient
	baseURL string
	token   string
}

// New creates a Client. An empty baseURL falls back to the public API;
// an empty token sends unauthenticated requests (GitHub rate-limits those
// heavily, but they work).
func New(client HTTPClient, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{client: client, baseURL: baseURL, token: token}
}

type searchResponse struct {
	Items []struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
		Commit  struct {
			Message string `json:"message"`
			Author  struct {
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			Login string `json:"login"`
		} `json:"author"`
	} `json:"items"`
}

// LatestMatch returns the newest commit matching keyword authored strictly
// before the given bound, or nil when the search finds nothing. The upper
// bound keeps commits whose author date lags their search visibility from
// slipping past later polls.
func (c *Client) LatestMatch(ctx context.Context, keyword string, before time.Time) (*model.Commit, error) {
	q := fmt.Sprintf("%s author-date:<%s", keyword, before.UTC().Format(time.RFC3339))
	params := url.Values{
		"q":        {q},
		"sort":     {"author-date"},
		"order":    {"desc"},
		"per_page": {"1"},
	}

	var res searchResponse
	if err := c.getJSON(ctx, "/search/commits?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("search commits: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}

	it := res.Items[0]
	commit := &model.Commit{
		SHA:        it.SHA,
		URL:        it.HTMLURL,
		Message:    it.Commit.Message,
		AuthorDate: it.Commit.Author.Date,
	}
	if it.Author != nil {
		commit.Author = it.Author.Login
	}
	return commit, nil
}

type userResponse struct {
	TwitterUsername *string `json:"twitter_username"`
}

// AuthorHandle resolves the Twitter handle a GitHub user has published on
// their profile, or "" when they have none.
func (c *Client) AuthorHandle(ctx context.Context, login string) (string, error) {
	var res userResponse
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(login), &res); err != nil {
		return "", fmt.Errorf("get user %s: %w", login, err)
	}
	if res.TwitterUsername == nil {
		return "", nil
	}
	return *res.TwitterUsername, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "commitbot/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, firstLine(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstLine(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
