package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
)

// Client talks to the dubbing backend. Every call is a JSON POST
// relative to the base address. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. An empty base URL yields a client
// whose calls fail with a config error so callers can fall through to
// direct providers.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a base address is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// BaseURL returns the normalised base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the client used for backend calls so direct provider
// fallbacks share the same timeout.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if !c.Configured() {
		return apperr.New(apperr.Config, "backend base url is not configured")
	}
	return PostJSON(ctx, c.httpClient, c.baseURL+path, payload, out)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// PostJSON posts payload to url and decodes a 2xx JSON body into out.
// Non-2xx responses become a *StatusError carrying the body's "error"
// field when present.
func PostJSON(ctx context.Context, httpClient *http.Client, url string, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return apperr.Wrap(err, apperr.Network, "request timed out")
		}
		return apperr.Wrap(err, apperr.Network, "failed to make request")
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.Network, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body errorBody
		if json.Unmarshal(responseBody, &body) == nil && body.Error != "" {
			statusErr.Message = body.Error
		} else {
			statusErr.Message = strings.TrimSpace(string(responseBody))
		}
		return apperr.Wrap(statusErr, apperr.API, "backend rejected request").
			WithContext("status", resp.StatusCode)
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return apperr.Wrap(err, apperr.API, "failed to parse response")
	}
	return nil
}

// Message returns the backend supplied error text carried by err, or
// err.Error() when the failure did not come from a backend response.
func Message(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return err.Error()
}
