package caldav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConnectionResult is the outcome of a connectivity probe. It is a value,
// never an error: the probe backs an interactive "test connection" action
// and must not crash callers.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreatedEvent describes a successfully written remote event.
type CreatedEvent struct {
	UID    string
	Href   string
	ETag   string
	RawICS string
}

// StatusError reports a non-2xx response, keeping enough of the exchange
// for diagnostics.
type StatusError struct {
	Method     string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("caldav %s failed: %s: %s", e.Method, e.Status, e.Body)
	}
	return fmt.Sprintf("caldav %s failed: %s", e.Method, e.Status)
}

// Client talks to a single calendar collection over HTTP(S) with Basic
// authentication. It issues PROPFIND, PUT and DELETE only; the protocol has
// no update verb, so rewrites happen upstream as delete-then-create.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     *zap.Logger
}

// NewClient validates credentials and normalizes the collection URL to end
// with a slash.
func NewClient(httpClient *http.Client, baseURL, username, password string, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("caldav: base url is required")
	}
	if username == "" {
		return nil, fmt.Errorf("caldav: username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("caldav: password is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		username:   username,
		password:   password,
		logger:     logger,
	}, nil
}

// TestConnection probes the collection with PROPFIND Depth:0. Any failure
// is reported as a message, not an error.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.baseURL, nil)
	if err != nil {
		return ConnectionResult{Success: false, Message: fmt.Sprintf("invalid server url: %v", err)}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Depth", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConnectionResult{Success: false, Message: fmt.Sprintf("connection failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ConnectionResult{Success: false, Message: fmt.Sprintf("server responded with %s", resp.Status)}
	}

	return ConnectionResult{Success: true, Message: "connection successful"}
}

// CreateEvent writes the event as {uid}.ics. The If-None-Match precondition
// makes the server reject a colliding UID instead of silently overwriting
// an existing event.
func (c *Client) CreateEvent(ctx context.Context, spec EventSpec) (*CreatedEvent, error) {
	if !spec.End.After(spec.Start) {
		return nil, fmt.Errorf("caldav: event end must be after start")
	}
	if spec.UID == "" {
		spec.UID = uuid.NewString()
	}

	ics := BuildICS(spec)
	href := c.baseURL + spec.UID + ".ics"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, strings.NewReader(ics))
	if err != nil {
		return nil, fmt.Errorf("caldav: build PUT request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	req.Header.Set("If-None-Match", "*")

	c.logger.Debug("caldav PUT", zap.String("href", href), zap.Int("size", len(ics)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caldav: PUT %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Method:     http.MethodPut,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &CreatedEvent{
		UID:    spec.UID,
		Href:   href,
		ETag:   resp.Header.Get("ETag"),
		RawICS: ics,
	}, nil
}

// DeleteEvent removes {uid}.ics. A 404 counts as success so the operation
// stays idempotent when the remote event vanished after a partial failure.
func (c *Client) DeleteEvent(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("caldav: uid is required")
	}
	href := c.baseURL + uid + ".ics"

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, href, nil)
	if err != nil {
		return fmt.Errorf("caldav: build DELETE request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	c.logger.Debug("caldav DELETE", zap.String("href", href))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("caldav: DELETE %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     http.MethodDelete,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
