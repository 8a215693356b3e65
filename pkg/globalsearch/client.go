// Package globalsearch provides a typed client for the field administration
// API of a GlobalSearch (Square 9) server.
package globalsearch

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

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/aretw0/livefield/pkg/core"
)

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("globalsearch %s %s: http %d: %s", e.Method, e.Path, e.Status, body)
}

// Is maps 404 responses onto core.ErrFieldNotFound.
func (e *APIError) Is(target error) bool {
	return target == core.ErrFieldNotFound && e.Status == http.StatusNotFound
}

// Client talks to one database of a GlobalSearch server.
type Client struct {
	BaseURL    string
	DatabaseID int
	User       string
	Password   string
	HTTPClient *http.Client
	Logger     *slog.Logger

	limiter       *rate.Limiter
	maxTries      uint
	retryInterval time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithCredentials sets the basic auth credentials sent with every request.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.User = user
		c.Password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithRateLimit caps the request rate. A zero limit disables limiting.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithRetry sets how often a transient failure is attempted and the initial
// backoff interval between attempts.
func WithRetry(maxTries uint, initial time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.retryInterval = initial
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.Logger = logger }
}

// New creates a client for the server at baseURL (e.g.
// "https://gs.example.com/square9api") and database dbID.
func New(baseURL string, dbID int, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		DatabaseID: dbID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:       rate.NewLimiter(5, 5),
		maxTries:      3,
		retryInterval: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c *Client) fieldsPath() string {
	return fmt.Sprintf("/api/admin/databases/%d/fields", c.DatabaseID)
}

// do runs a request with rate limiting and retries transient failures of
// idempotent methods.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = b
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	// A POST that timed out upstream may still have created the field.
	tries := c.maxTries
	if !idempotent(method) {
		tries = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.once(ctx, method, path, payload, out)
		if err != nil && !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.Logger.Warn("retrying request", "method", method, "path", path, "error", err, "in", next)
		}),
	)
	return err
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.User != "" || c.Password != "" {
		req.SetBasicAuth(c.User, c.Password)
	}

	c.Logger.Debug("globalsearch request", "method", method, "path", path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusInternalServerError && strings.Contains(string(data), "name already exists") {
			return core.ErrFieldExists
		}
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, core.ErrFieldExists) {
		return false
	}
	// transport failures surface as *url.Error
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Token calls GET /api/licenses.
func (c *Client) Token(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"Token"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/licenses", nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Version calls GET /api/admin?function=version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, "/api/admin?function=version", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Field calls GET /api/admin/databases/{db}/fields/{id}.
func (c *Client) Field(ctx context.Context, id int) (core.Field, error) {
	var out []core.Field
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", c.fieldsPath(), id), nil, &out); err != nil {
		return core.Field{}, err
	}
	if len(out) == 0 {
		return core.Field{}, fmt.Errorf("%w: %d", core.ErrFieldNotFound, id)
	}
	return out[0], nil
}

// Fields calls GET /api/admin/databases/{db}/fields.
func (c *Client) Fields(ctx context.Context) ([]core.Field, error) {
	var out []core.Field
	if err := c.do(ctx, http.MethodGet, c.fieldsPath(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LiveFields returns the fields of the database that carry a live field.
func (c *Client) LiveFields(ctx context.Context) ([]core.Field, error) {
	fields, err := c.Fields(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]core.Field, 0, len(fields))
	for _, f := range fields {
		if f.IsLive() {
			live = append(live, f)
		}
	}
	return live, nil
}

// CreateLiveField calls POST /api/admin/databases/{db}/fields.
func (c *Client) CreateLiveField(ctx context.Context, name, script string) (core.Field, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.fieldsPath(), core.NewLiveFieldTemplate(name, script), &out); err != nil {
		return core.Field{}, fmt.Errorf("failed to create live field %q: %w", name, err)
	}
	return decodeCreated(out, name, script)
}

// decodeCreated accepts the created field as an object or a one element list.
func decodeCreated(data json.RawMessage, name, script string) (core.Field, error) {
	created := core.NewLiveFieldTemplate(name, script)
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return created, nil
	case data[0] == '[':
		var list []core.Field
		if err := json.Unmarshal(data, &list); err != nil {
			return core.Field{}, fmt.Errorf("failed to decode created field: %w", err)
		}
		if len(list) > 0 {
			return list[0], nil
		}
		return created, nil
	case data[0] == '{':
		if err := json.Unmarshal(data, &created); err != nil {
			return core.Field{}, fmt.Errorf("failed to decode created field: %w", err)
		}
		return created, nil
	default:
		var id int
		if err := json.Unmarshal(data, &id); err == nil {
			created.ID = id
		}
		return created, nil
	}
}

// UpdateLiveField fetches the field, replaces the script and request settings
// and writes the whole field back with PUT.
func (c *Client) UpdateLiveField(ctx context.Context, id int, script string, m core.Mapping) error {
	field, err := c.Field(ctx, id)
	if err != nil {
		return err
	}
	lf := field.ExtendedConfig.LiveField
	if lf == nil {
		return fmt.Errorf("%w: %s (%d)", core.ErrNotLive, field.Name, field.ID)
	}

	lf.Script = script
	m.Apply(lf)

	path := fmt.Sprintf("%s/%d", c.fieldsPath(), field.ID)
	if err := c.do(ctx, http.MethodPut, path, field, nil); err != nil {
		return fmt.Errorf("failed to update live field %q: %w", field.Name, err)
	}
	return nil
}

// DeleteField calls DELETE /api/admin/databases/{db}/fields/{id}.
func (c *Client) DeleteField(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", c.fieldsPath(), id), nil, nil)
}

var _ core.FieldStore = (*Client)(nil)
