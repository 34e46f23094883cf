package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	pathContact     = "/contact/"
	pathFormDetails = "/form-details"

	maxResponseBytes = 1 << 20
)

var (
	ErrNotFound      = errors.New("gateway: not found")
	ErrNotConfigured = errors.New("gateway: base url not configured")
)

// Error is a non-2xx or success=false answer from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: status %d", e.StatusCode)
}

// Contact is a previously saved contact record for a customer number.
type Contact struct {
	Number      string `json:"number,omitempty"`
	ContactName string `json:"Contact_Name"`
	Region      string `json:"Region"`
	Type        string `json:"Type"`
}

// Ack is the backend envelope for form submissions.
type Ack struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ContactLookup is the best-effort saved-contact source.
type ContactLookup interface {
	LookupContact(ctx context.Context, number string) (*Contact, error)
}

// FormSubmitter posts an encoded multipart work order.
type FormSubmitter interface {
	SubmitForm(ctx context.Context, contentType string, body io.Reader) (Ack, error)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the console backend over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client

	lookups singleflight.Group
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{base: u, token: cfg.Token, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// LookupContact fetches the saved contact for number. A 404 is not an error:
// it returns (nil, nil). Concurrent lookups for the same number share one request.
func (c *Client) LookupContact(ctx context.Context, number string) (*Contact, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	v, err, _ := c.lookups.Do(number, func() (any, error) {
		return c.lookupContact(ctx, number)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ct, _ := v.(*Contact)
	return ct, nil
}

func (c *Client) lookupContact(ctx context.Context, number string) (*Contact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathContact+url.PathEscape(number)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: contact lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: read contact: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: messageFrom(body)}
	}

	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("gateway: decode contact: %w", err)
	}
	raw := env.Data
	if len(raw) == 0 || string(raw) == "null" {
		if env.Success != nil {
			return nil, ErrNotFound
		}
		raw = body
	}
	var ct Contact
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, fmt.Errorf("gateway: decode contact: %w", err)
	}
	if ct.ContactName == "" && ct.Region == "" && ct.Type == "" {
		return nil, ErrNotFound
	}
	if ct.Number == "" {
		ct.Number = number
	}
	return &ct, nil
}

// SubmitForm posts a multipart work order to /form-details. It never retries.
func (c *Client) SubmitForm(ctx context.Context, contentType string, body io.Reader) (Ack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pathFormDetails), body)
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("gateway: submit form: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Ack{}, fmt.Errorf("gateway: read submit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Ack{}, &Error{StatusCode: resp.StatusCode, Message: messageFrom(raw)}
	}

	var ack Ack
	if err := json.Unmarshal(raw, &ack); err != nil {
		return Ack{}, fmt.Errorf("gateway: decode submit response: %w", err)
	}
	if !ack.Success {
		return ack, &Error{StatusCode: resp.StatusCode, Message: ack.Message}
	}
	return ack, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func messageFrom(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}

// MessageOf extracts the human-readable message of a submission failure:
// the backend message first, then the error text, then fallback.
func MessageOf(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
