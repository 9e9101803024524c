package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/config"
	"github.com/hospital-app/hospital-client/models"
)

// SessionSource supplies the current session for attaching the bearer
// credential. Nil sessions mean the request goes out unauthenticated.
type SessionSource interface {
	Current() *models.Session
}

// Client is a typed wrapper around the backend's REST endpoints. One method
// per endpoint, no retries; retry policy belongs to callers.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session SessionSource
}

// New creates a gateway client from the project config
func New(conf *config.Config, session SessionSource) *Client {
	return &Client{
		BaseURL: strings.TrimRight(conf.APIBaseURL, "/"),
		HTTP:    &http.Client{Timeout: conf.HTTPTimeout},
		Session: session,
	}
}

// do performs one request and maps the response onto out (when non-nil).
// Transport failures and timeouts come back as NetworkError; everything else
// follows the status-code taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &APIError{Kind: NetworkError, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Session != nil {
		if s := c.Session.Current(); s != nil {
			req.Header.Set("Authorization", "Bearer "+s.Credential)
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		zap.S().Warnw("request failed",
			"method", method,
			"path", path,
			"error", err,
		)
		return &APIError{Kind: NetworkError, Err: err}
	}
	defer resp.Body.Close()

	zap.S().Debugw("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: ServerError, StatusCode: resp.StatusCode, Message: "failed to decode response body", Err: err}
	}
	return nil
}

func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &APIError{Kind: NetworkError, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, query, body, "application/json", out)
}

// sendMultipart sends the given fields as a multipart form, attaching an
// optional file part named "profile"
func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, image *ImageUpload, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return &APIError{Kind: NetworkError, Err: err}
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("profile", image.Filename)
		if err != nil {
			return &APIError{Kind: NetworkError, Err: err}
		}
		if _, err := io.Copy(part, image.Reader); err != nil {
			return &APIError{Kind: NetworkError, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return &APIError{Kind: NetworkError, Err: err}
	}
	return c.do(ctx, method, path, nil, &buf, mw.FormDataContentType(), out)
}

// ImageUpload is an optional profile image attached to register and
// update-profile calls
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}
