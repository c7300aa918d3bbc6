package gallery

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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/selfie-finder/internal/constants"
)

// maxResponseSize bounds how much of a search response is read.
const maxResponseSize = 32 << 20

// Client submits selfies to the face-matching service.
type Client struct {
	baseURL    string
	parsedURL  *url.URL
	field      FieldName
	httpClient *http.Client
	timeout    time.Duration
	captureDir string
	logger     *slog.Logger
}

// NewClient creates a client for the service at baseURL using the given field convention.
func NewClient(baseURL string, field FieldName) (*Client, error) {
	return NewClientWithCapture(baseURL, field, "")
}

// NewClientWithCapture creates a client that also saves every service response
// to captureDir. Pass an empty captureDir to disable capturing.
func NewClientWithCapture(baseURL string, field FieldName, captureDir string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gallery URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("gallery URL must use http or https, got %q", baseURL)
	}
	if _, err := ParseFieldName(string(field)); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    baseURL,
		parsedURL:  parsed,
		field:      field,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	if captureDir != "" {
		if err := c.SetCaptureDir(captureDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the service base address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Field returns the multipart field convention in use.
func (c *Client) Field() FieldName {
	return c.field
}

// SetTimeout bounds each search request. Zero disables the timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetLogger replaces the client logger.
func (c *Client) SetLogger(l *slog.Logger) {
	c.logger = l
}

// SetCaptureDir enables response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// Search submits the files in one multipart POST to {base}/search and classifies the result.
// It never returns a Go error: every failure is folded into the outcome.
func (c *Client) Search(ctx context.Context, files []File) SearchOutcome {
	if len(files) == 0 {
		return failure(ErrNoFiles, constants.MsgNoFile)
	}
	if c.field == FieldFile && len(files) > 1 {
		return failure(fmt.Errorf("%w: got %d", ErrTooManyFiles, len(files)), constants.MsgTooManyFiles)
	}

	body, contentType, err := buildMultipart(c.field, files)
	if err != nil {
		return failure(err, constants.MsgFetchFailed)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL("search"), body)
	if err != nil {
		return transportFailure(fmt.Errorf("could not create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from validated parsedURL via resolveURL
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return transportFailure(fmt.Errorf("could not read response body: %w", err))
	}
	c.captureResponse("search", data)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := serviceErrorMessage(data)
		c.logger.Warn("search rejected", "status", resp.StatusCode, "message", msg)
		return failure(&ServiceError{StatusCode: resp.StatusCode, Message: msg}, msg)
	}

	var parsed struct {
		Matches RawMatches `json:"matches"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(fmt.Errorf("%w: %w", ErrMalformedResponse, err), constants.MsgInvalidResponse)
	}

	matches := Normalize(c.baseURL, parsed.Matches)
	c.logger.Debug("search finished",
		"files", len(files),
		"matches", len(matches),
		"duration", time.Since(start))
	return SearchOutcome{Matches: matches}
}

// serviceErrorMessage extracts the user-facing message of a non-success response.
// It understands {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"error": "..."}.
func serviceErrorMessage(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return constants.MsgFetchFailed
	}
	if msg := detailMessage(body.Detail); msg != "" {
		return msg
	}
	if body.Error != "" {
		return body.Error
	}
	return constants.MsgFetchFailed
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if item.Msg != "" {
			msgs = append(msgs, item.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// readErrorBody reads a bounded error body for inclusion in error messages.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, constants.MaxErrorBodySize))
	if err != nil {
		return "(could not read error body)"
	}
	if msg := serviceErrorMessage(body); msg != constants.MsgFetchFailed {
		return msg
	}
	return strings.TrimSpace(string(body))
}

// captureResponse saves the response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := strings.TrimPrefix(strings.ReplaceAll(endpoint, "/", "_"), "_")
	filename = fmt.Sprintf("%s_%s.json", filename, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(c.captureDir, filename)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		body = pretty.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		c.logger.Warn("failed to capture response", "path", path, "error", err)
	}
}

// IsServiceError reports whether err is a non-success response and returns it.
func IsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := errors.As(err, &se)
	return se, ok
}
