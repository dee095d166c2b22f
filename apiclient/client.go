// Package apiclient reads dashboard data from the portal JSON API with the
// caller's bearer credential. Payloads are decoded defensively: anything
// that does not have the expected shape decodes to an empty value and an
// error the view can log.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
)

const DefaultTimeout = 5 * time.Second

const (
	TextCodeUnexpectedPayload = "UNEXPECTED_PAYLOAD"
	TextCodeRequestFailed     = "API_REQUEST_FAILED"
)

var ErrUnexpectedPayload = errors.New("unexpected API payload", errors.CategoryBadInput).
	WithTextCode(TextCodeUnexpectedPayload)

var ErrRequestFailed = errors.New("API request failed", errors.CategoryOperation).
	WithTextCode(TextCodeRequestFailed)

// Client implements portal.DashboardAPI.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  portal.Logger
}

var _ portal.DashboardAPI = (*Client)(nil)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger portal.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the API mounted at baseURL, e.g.
// http://127.0.0.1:8080/api
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		logger:  portal.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) AdminUsers(ctx context.Context, credential string) ([]portal.UserInfo, error) {
	body, err := c.get(ctx, "/admin/users", credential)
	if err != nil {
		return []portal.UserInfo{}, err
	}
	return decodeList(body, func(u portal.UserInfo) bool { return u.Username != "" })
}

func (c *Client) AdminStats(ctx context.Context, credential string) (portal.AdminStats, error) {
	body, err := c.get(ctx, "/admin/stats", credential)
	if err != nil {
		return portal.AdminStats{}, err
	}
	return decodeObject[portal.AdminStats](body)
}

func (c *Client) UserProfile(ctx context.Context, credential string) (portal.UserProfile, error) {
	body, err := c.get(ctx, "/user/profile", credential)
	if err != nil {
		return portal.UserProfile{}, err
	}
	profile, err := decodeObject[portal.UserProfile](body)
	if err != nil {
		return portal.UserProfile{}, err
	}
	if profile.Groups == nil {
		profile.Groups = []string{}
	}
	return profile, nil
}

func (c *Client) UserActivities(ctx context.Context, credential string) ([]portal.ActivityEntry, error) {
	body, err := c.get(ctx, "/user/activities", credential)
	if err != nil {
		return []portal.ActivityEntry{}, err
	}
	return decodeList(body, func(a portal.ActivityEntry) bool { return a.Description != "" })
}

func (c *Client) get(ctx context.Context, path, credential string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(fiber.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if credential != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+credential)
	}
	a.Timeout(timeout)

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return nil, errors.Wrap(err, errors.CategoryInternal, "invalid API request")
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, errors.Wrap(errs[0], ErrRequestFailed.Category, ErrRequestFailed.Message).
			WithTextCode(ErrRequestFailed.TextCode).
			WithMetadata(map[string]any{"path": path})
	}

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, errors.New(fmt.Sprintf("API returned status %d", code), ErrRequestFailed.Category).
			WithTextCode(ErrRequestFailed.TextCode).
			WithCode(code).
			WithMetadata(map[string]any{"path": path, "body": truncate(body, 256)})
	}

	return body, nil
}

// decodeList accepts only a JSON array. Elements that fail to decode or
// that keep is rejects are skipped.
func decodeList[T any](body []byte, keep func(T) bool) ([]T, error) {
	out := []T{}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return out, unexpected("array", trimmed)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return out, errors.Wrap(err, ErrUnexpectedPayload.Category, ErrUnexpectedPayload.Message).
			WithTextCode(ErrUnexpectedPayload.TextCode)
	}

	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		if keep != nil && !keep(v) {
			continue
		}
		out = append(out, v)
	}

	return out, nil
}

// decodeObject accepts only a JSON object.
func decodeObject[T any](body []byte) (T, error) {
	var zero T

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return zero, unexpected("object", trimmed)
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return zero, errors.Wrap(err, ErrUnexpectedPayload.Category, ErrUnexpectedPayload.Message).
			WithTextCode(ErrUnexpectedPayload.TextCode)
	}
	return v, nil
}

func unexpected(want string, body []byte) error {
	return errors.New(ErrUnexpectedPayload.Message, ErrUnexpectedPayload.Category).
		WithTextCode(ErrUnexpectedPayload.TextCode).
		WithMetadata(map[string]any{"expected": want, "body": truncate(body, 256)})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
