// Package stockticker is the Go SDK for the ticker server's REST API.
package stockticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockticker/internal/domain"
)

// Failure classes returned by Client methods. Callers match them with
// errors.Is.
var (
	// ErrAuthFailed covers rejected credentials and failed login requests.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrSessionExpired is returned when the server rejects the token (401).
	ErrSessionExpired = errors.New("session expired")
	// ErrDataUnavailable is a 2xx answer without a usable snapshot.
	ErrDataUnavailable = errors.New("no data received")
	// ErrFetchFailed is a transport error or any other non-2xx status.
	ErrFetchFailed = errors.New("failed to fetch data")
)

// Client provides a Go SDK for interacting with the ticker server API. It
// never retries; the refresh clock is the only retry mechanism.
type Client struct {
	baseURL    string
	httpClient *resty.Client
}

// NewClient creates a new API client. baseURL includes the /api prefix, for
// example http://localhost:8080/api.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{baseURL: baseURL, httpClient: rc}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginData, error) {
	if username == "" || password == "" {
		return LoginData{}, fmt.Errorf("%w: username and password are required", ErrAuthFailed)
	}
	return c.credentials(ctx, "/auth/login", username, password)
}

// Register creates an account and returns a token for it.
func (c *Client) Register(ctx context.Context, username, password string) (LoginData, error) {
	if username == "" || password == "" {
		return LoginData{}, fmt.Errorf("%w: username and password are required", ErrAuthFailed)
	}
	return c.credentials(ctx, "/auth/register", username, password)
}

func (c *Client) credentials(ctx context.Context, path, username, password string) (LoginData, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(LoginRequest{Username: username, Password: password}).
		Post(path)
	if err != nil {
		return LoginData{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	env, decErr := decodeEnvelope(resp.Body())
	if !resp.IsSuccess() || decErr != nil || !env.Success {
		apiErr := &APIError{Kind: ErrAuthFailed, Status: resp.StatusCode()}
		if decErr == nil {
			apiErr.Message = env.Message
		}
		return LoginData{}, apiErr
	}

	var data LoginData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return LoginData{}, fmt.Errorf("%w: response carried no token", ErrAuthFailed)
	}
	if data.Username == "" {
		data.Username = username
	}
	return data, nil
}

// Latest fetches the most recent snapshot.
func (c *Client) Latest(ctx context.Context, token string) (domain.Snapshot, error) {
	env, err := c.get(ctx, token, "/stock-data/latest", nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if !env.Success {
		return domain.Snapshot{}, unavailable(env.Message)
	}
	if !env.HasData() {
		return domain.Snapshot{}, unavailable("")
	}

	var data StockData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if data.StockPrices.Prices == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: missing stockPrices", ErrDataUnavailable)
	}
	if data.Timestamp.IsZero() {
		return domain.Snapshot{}, fmt.Errorf("%w: missing timestamp", ErrDataUnavailable)
	}
	return data.Snapshot(), nil
}

// Count returns the number of stored snapshots.
func (c *Client) Count(ctx context.Context, token string) (int64, error) {
	env, err := c.get(ctx, token, "/stock-data/count", nil)
	if err != nil {
		return 0, err
	}
	if !env.Success {
		return 0, unavailable(env.Message)
	}
	var n int64
	if err := json.Unmarshal(env.Data, &n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return n, nil
}

// History returns one page of stored snapshots, newest first.
func (c *Client) History(ctx context.Context, token string, page, size int) ([]domain.Snapshot, error) {
	env, err := c.get(ctx, token, "/stock-data/paginated", map[string]string{
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(size),
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, unavailable(env.Message)
	}
	var data PageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	out := make([]domain.Snapshot, 0, len(data.Content))
	for _, d := range data.Content {
		out = append(out, d.Snapshot())
	}
	return out, nil
}

// get performs an authenticated GET and classifies transport and status
// failures. A returned envelope may still report success=false.
func (c *Client) get(ctx context.Context, token, path string, query map[string]string) (*Response, error) {
	req := c.httpClient.R().SetContext(ctx).SetAuthToken(token)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetchFailed, path, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, ErrSessionExpired
	case !resp.IsSuccess():
		return nil, fmt.Errorf("%w: GET %s: %s", ErrFetchFailed, path, resp.Status())
	}

	env, err := decodeEnvelope(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return env, nil
}

func decodeEnvelope(body []byte) (*Response, error) {
	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &env, nil
}

func unavailable(msg string) error {
	if msg == "" {
		return ErrDataUnavailable
	}
	return &APIError{Kind: ErrDataUnavailable, Message: msg}
}

// APIError carries the message the server put in a failed envelope. Kind is
// one of the package sentinels.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *APIError) Unwrap() error { return e.Kind }

// ServerMessage extracts the server-provided text from an error returned by
// Client, or "" when the server sent none.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
