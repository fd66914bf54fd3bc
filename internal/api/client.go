package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wordmaster-live/internal/auth"
)

var ErrNotModified = errors.New("not_modified")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Code)
}

func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	baseURL string
	inner   *http.Client
	creds   auth.Resolver
}

func New(baseURL string, timeout time.Duration, creds auth.Resolver) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if creds == nil {
		creds = auth.Anonymous{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		inner:   &http.Client{Timeout: timeout},
		creds:   creds,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.sendJSON(ctx, http.MethodGet, path, query, nil, out)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	_, err := c.sendJSON(ctx, http.MethodPost, path, query, body, out)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	credential, err := c.creds.Credential(ctx)
	if err != nil && !errors.Is(err, auth.ErrNoCredential) {
		return nil, err
	}
	if h := auth.BearerHeader(credential); h != "" {
		req.Header.Set("Authorization", h)
	}
	return req, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.inner.Do(req)
	if err != nil {
		observeRequest(path, 0, start)
		return 0, err
	}
	defer resp.Body.Close()
	observeRequest(path, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if s, ok := out.(*string); ok && !json.Valid(raw) {
		*s = string(raw)
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}
