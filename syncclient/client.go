// Package syncclient is the consumer side of the session protocol: a thin
// HTTP client for the /api surface and a poller that turns version bumps
// into snapshot callbacks.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hoshinonyaruko/tabletop/structs"
)

// ActionError is a failure reported by the server, either a rejected write
// ({success:false}) or a non-2xx response.
type ActionError struct {
	Action  string
	Status  int
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Action, e.Message, e.Status)
}

// IsRejected reports whether err is a write the server turned down for a
// recoverable reason, such as an occupied cell.
func IsRejected(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae) && ae.Status == http.StatusOK
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Version *int64 `json:"version"`
}

// Client talks to one session on one server. It remembers the last version
// it has seen so Check only transfers a snapshot when something changed.
type Client struct {
	baseURL    string
	session    string
	hostKey    string
	httpClient *http.Client

	mu    sync.Mutex
	known int64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHostKey sends the host key with every request.
func WithHostKey(key string) Option {
	return func(c *Client) { c.hostKey = key }
}

// New creates a client for baseURL (e.g. http://localhost:38870).
func New(baseURL, sessionID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sessionID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KnownVersion is the newest document version this client has seen in full.
func (c *Client) KnownVersion() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.known
}

func (c *Client) setKnown(v int64) {
	c.mu.Lock()
	if v > c.known {
		c.known = v
	}
	c.mu.Unlock()
}

// advance records the version returned by our own write. It only moves when
// the write is the next version; a larger jump means someone else wrote in
// between and the next Check has to fetch their changes.
func (c *Client) advance(v int64) {
	c.mu.Lock()
	if v == c.known+1 {
		c.known = v
	}
	c.mu.Unlock()
}

func (c *Client) endpoint(action string, extra url.Values) string {
	q := url.Values{}
	q.Set("action", action)
	q.Set("session", c.session)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.baseURL + "/api?" + q.Encode()
}

func (c *Client) roundTrip(ctx context.Context, method, action string, extra url.Values, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode payload: %w", action, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(action, extra), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.hostKey != "" {
		req.Header.Set("X-Host-Key", c.hostKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ActionError{Action: action, Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return nil, &ActionError{Action: action, Status: resp.StatusCode, Message: env.Error}
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, action string, extra url.Values, out any) error {
	raw, err := c.roundTrip(ctx, http.MethodGet, action, extra, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", action, err)
	}
	return nil
}

// State fetches the full snapshot and makes its version the known one.
func (c *Client) State(ctx context.Context) (*structs.Snapshot, error) {
	var resp struct {
		Data *structs.Snapshot `json:"data"`
	}
	if err := c.get(ctx, "state", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &ActionError{Action: "state", Status: http.StatusOK, Message: "missing data"}
	}
	c.setKnown(resp.Data.Version)
	return resp.Data, nil
}

// Check asks whether the session moved past the known version. When it did,
// the result carries the new snapshot and the known version follows it.
func (c *Client) Check(ctx context.Context) (*structs.CheckResult, error) {
	extra := url.Values{"version": {strconv.FormatInt(c.KnownVersion(), 10)}}
	var res structs.CheckResult
	if err := c.get(ctx, "check", extra, &res); err != nil {
		return nil, err
	}
	if res.HasChanges && res.Data != nil {
		c.setKnown(res.Data.Version)
	}
	return &res, nil
}

// Ping returns the current ping, or nil when there is none.
func (c *Client) Ping(ctx context.Context) (*structs.Ping, error) {
	var resp struct {
		Ping *structs.Ping `json:"ping"`
	}
	if err := c.get(ctx, "ping", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ping, nil
}

// Rolls returns the recent roll log, oldest first.
func (c *Client) Rolls(ctx context.Context) ([]structs.RollRecord, error) {
	var resp struct {
		Rolls []structs.RollRecord `json:"rolls"`
	}
	if err := c.get(ctx, "rolls", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rolls, nil
}

// Auth reports whether this client is recognized as the session host.
func (c *Client) Auth(ctx context.Context) (bool, error) {
	var resp struct {
		IsGameMaster bool `json:"isGameMaster"`
	}
	if err := c.get(ctx, "auth", nil, &resp); err != nil {
		return false, err
	}
	return resp.IsGameMaster, nil
}

// Do posts a write action. The response is decoded into out when it is not
// nil, and the returned version is recorded. It returns the new version.
func (c *Client) Do(ctx context.Context, action string, payload, out any) (int64, error) {
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := c.roundTrip(ctx, http.MethodPost, action, nil, payload)
	if err != nil {
		return 0, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, fmt.Errorf("%s: decode response: %w", action, err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return 0, fmt.Errorf("%s: decode response: %w", action, err)
		}
	}
	if env.Version == nil {
		return 0, nil
	}
	c.advance(*env.Version)
	return *env.Version, nil
}
