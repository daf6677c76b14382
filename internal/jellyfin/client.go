package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/italolelis/jellyfin_downloader/internal/logctx"
	"github.com/italolelis/jellyfin_downloader/internal/media"
	"golang.org/x/oauth2"
)

const (
	authScheme  = "MediaBrowser"
	itemFields  = "Path,ParentId,PremiereDate,OriginalTitle"
	maxErrorLen = 512
)

type Client struct {
	BaseURL    string
	identity   Identity
	transport  http.RoundTripper
	httpClient *http.Client
}

type Option func(*Client)

// WithTransport sets the round tripper every request goes through.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a Jellyfin API client. No request timeout is set: streams
// may take arbitrarily long and are bounded by the caller's context only.
func NewClient(baseURL string, identity Identity, opts ...Option) *Client {
	client := &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		identity:  identity.withDefaults(),
		transport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.httpClient = &http.Client{Transport: client.transport}

	return client
}

type authRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authResponse struct {
	AccessToken string `json:"AccessToken"`
	User        struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
}

type itemsResponse struct {
	Items            []*media.Item `json:"Items"`
	TotalRecordCount int           `json:"TotalRecordCount"`
}

// Authenticate exchanges the credentials for a session.
func (c *Client) Authenticate(ctx context.Context, creds media.Credentials) (*media.Session, error) {
	logger := logctx.LoggerFromContext(ctx).With("username", creds.Username)

	body, err := json.Marshal(authRequest{Username: creds.Username, Pw: creds.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}

	authorization := authScheme + " " + c.identity.params("")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)
	req.Header.Set("X-Emby-Authorization", authorization)

	logger.InfoContext(ctx, "authenticating user")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &media.NetworkError{Operation: "authenticate", APIMessage: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "authenticate"); err != nil {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &media.AuthenticationError{Username: creds.Username, Reason: "credentials rejected", Err: err}
		}

		return nil, err
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, &media.AuthenticationError{Username: creds.Username, Reason: "malformed response", Err: err}
	}

	if auth.AccessToken == "" || auth.User.ID == "" {
		return nil, &media.AuthenticationError{Username: creds.Username, Reason: "no access token or user id returned"}
	}

	logger.InfoContext(ctx, "authenticated", "user_id", auth.User.ID)

	return &media.Session{AccessToken: auth.AccessToken, UserID: auth.User.ID}, nil
}

// GetItems lists every item visible to the session user, recursively.
func (c *Client) GetItems(ctx context.Context, session *media.Session) ([]*media.Item, error) {
	logger := logctx.LoggerFromContext(ctx).With("user_id", session.UserID)

	query := url.Values{}
	query.Set("recursive", "true")
	query.Set("userId", session.UserID)
	query.Set("fields", itemFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/Items?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create items request: %w", err)
	}

	logger.DebugContext(ctx, "fetching items")

	resp, err := c.sessionClient(session).Do(req)
	if err != nil {
		return nil, &media.NetworkError{Operation: "get_items", APIMessage: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "get_items"); err != nil {
		return nil, err
	}

	var items itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &media.NetworkError{
			Operation:  "get_items",
			StatusCode: resp.StatusCode,
			APIMessage: "invalid response body",
			Err:        err,
		}
	}

	logger.DebugContext(ctx, "fetched items", "count", len(items.Items), "total_record_count", items.TotalRecordCount)

	return items.Items, nil
}

// GrabStream opens the item's content stream. The caller must close the body.
func (c *Client) GrabStream(ctx context.Context, session *media.Session, itemID string) (*media.Stream, error) {
	streamURL := fmt.Sprintf("%s/Videos/%s/stream.mp4", c.BaseURL, url.PathEscape(itemID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := c.sessionClient(session).Do(req)
	if err != nil {
		return nil, &media.NetworkError{Operation: "grab_stream", APIMessage: err.Error(), Err: err}
	}

	if err := checkResponse(resp, "grab_stream"); err != nil {
		resp.Body.Close()

		return nil, err
	}

	return &media.Stream{Body: resp.Body, Size: resp.ContentLength}, nil
}

// sessionClient returns an HTTP client that authorizes every request with the session token.
func (c *Client) sessionClient(session *media.Session) *http.Client {
	token := &oauth2.Token{
		TokenType:   authScheme,
		AccessToken: c.identity.params(session.AccessToken),
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   c.transport,
		},
	}
}

func checkResponse(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorLen))

	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &media.NetworkError{Operation: operation, StatusCode: resp.StatusCode, APIMessage: msg}
}

var _ media.Client = (*Client)(nil)
