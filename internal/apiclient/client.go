// Package apiclient is the single doorway to the HRMS backend. Every endpoint
// answers with the same JSON envelope; Call turns transport failures and
// success=false answers into typed errors and never retries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/table"
)

const (
	RequestIDHeader = "X-Request-ID"
	DefaultTimeout  = 8 * time.Second
	maxEnvelopeSize = 10 << 20
)

type Envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Message  string          `json:"message,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *logrus.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(base)},
		logger:  logger,
	}
}

// Call performs one request against path and returns the decoded envelope.
// body, when non-nil, is sent as JSON.
func (c *Client) Call(ctx context.Context, sess *session.Session, method, path string, body any) (Envelope, error) {
	env, _, err := c.do(ctx, sess, method, path, body)
	return env, err
}

func (c *Client) do(ctx context.Context, sess *session.Session, method, path string, body any) (Envelope, http.Header, error) {
	if method == "" {
		method = http.MethodGet
	}
	req, err := c.newRequest(ctx, sess, method, path, body)
	if err != nil {
		return Envelope{}, nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Warn("backend request failed")
		return Envelope{}, nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"request-id":  req.Header.Get(RequestIDHeader),
	}).Debug("backend request")

	var env Envelope
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err := decoder.Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return Envelope{}, resp.Header, &ApplicationError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return Envelope{}, resp.Header, &TransportError{Method: method, Path: path, Err: errors.Wrap(err, "decode envelope")}
	}
	if !env.Success {
		return env, resp.Header, &ApplicationError{Status: resp.StatusCode, Message: strings.TrimSpace(env.Message)}
	}
	return env, resp.Header, nil
}

func (c *Client) newRequest(ctx context.Context, sess *session.Session, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if sess != nil && sess.BackendCookie != "" {
		req.Header.Set("Cookie", sess.BackendCookie)
	}
	return req, nil
}

type LoginResult struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Redirect string `json:"-"`
	// Cookie is the backend session cookie ("name=value") to replay later.
	Cookie string `json:"-"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	env, header, err := c.do(ctx, nil, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return nil, &TransportError{Method: http.MethodPost, Path: "/login", Err: errors.Wrap(err, "decode login")}
		}
	}
	result.Redirect = env.Redirect
	result.Cookie = cookiePairs(header)
	return &result, nil
}

func cookiePairs(header http.Header) string {
	resp := http.Response{Header: header}
	pairs := make([]string, 0, 1)
	for _, c := range resp.Cookies() {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// Download is a binary payload (CSV export, payslip PDF) streamed to the
// browser as-is. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

func (c *Client) Download(ctx context.Context, sess *session.Session, path string) (*Download, error) {
	req, err := c.newRequest(ctx, sess, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, Path: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var env Envelope
		if json.NewDecoder(io.LimitReader(resp.Body, maxEnvelopeSize)).Decode(&env) == nil && env.Message != "" {
			return nil, &ApplicationError{Status: resp.StatusCode, Message: env.Message}
		}
		return nil, &ApplicationError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	// A JSON body on success is an envelope, never a file.
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType == "application/json" {
		defer resp.Body.Close()
		var env Envelope
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxEnvelopeSize)).Decode(&env); err != nil {
			return nil, &TransportError{Method: http.MethodGet, Path: path, Err: errors.Wrap(err, "decode envelope")}
		}
		if !env.Success {
			return nil, &ApplicationError{Status: resp.StatusCode, Message: env.Message}
		}
		return nil, &TransportError{Method: http.MethodGet, Path: path, Err: errors.New("expected a file, got an envelope")}
	}

	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return &Download{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filename,
		Size:        resp.ContentLength,
	}, nil
}

// DecodeList reads envelope data as an ordered list of records. A null or
// absent data field is an empty list.
func DecodeList(env Envelope) ([]table.Record, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return []table.Record{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(env.Data))
	decoder.UseNumber()
	var raw []map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode record list")
	}
	records := make([]table.Record, 0, len(raw))
	for _, item := range raw {
		records = append(records, table.Record(item))
	}
	return records, nil
}

func DecodeRecord(env Envelope) (table.Record, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return table.Record{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(env.Data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return table.Record(raw), nil
}
