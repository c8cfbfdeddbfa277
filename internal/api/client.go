package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/dukerupert/aivis/internal/metrics"
)

// Token is the opaque bearer credential issued by the backend. It is the only
// credential any call in this package accepts.
type Token string

// Client talks JSON to the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves path against the base URL. Absolute http(s) URLs pass through.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Response is the normalized result of FetchJSON. Data is always valid JSON:
// the backend body, {} for an empty body, or a synthesized {"error": ...}
// object when the body could not be parsed.
type Response struct {
	OK     bool
	Status int
	Data   json.RawMessage
	Kind   Kind
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r *Response) envelope() envelope {
	var env envelope
	_ = json.Unmarshal(r.Data, &env)
	return env
}

// Decode unmarshals Data into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &Error{Kind: KindInvalidJSON, Status: r.Status, Message: MsgInvalidJSON, Err: err}
	}
	return nil
}

// ErrorText returns the backend-provided error string, if any.
func (r *Response) ErrorText() string {
	return r.envelope().Error
}

// Err converts an unsuccessful response into an *Error. A response is
// unsuccessful when it is non-2xx, unparseable, or carries success=false.
func (r *Response) Err(fallback string) error {
	env := r.envelope()
	msg := env.Error
	if msg == "" {
		msg = fallback
	}

	switch {
	case r.Kind == KindHTML || r.Kind == KindInvalidJSON:
		return &Error{Kind: r.Kind, Status: r.Status, Message: env.Error}
	case !r.OK:
		kind := KindHTTP
		if unverified(r.Status, env.Error) {
			kind = KindUnverified
		}
		return &Error{Kind: kind, Status: r.Status, Message: msg}
	case env.Success != nil && !*env.Success:
		return &Error{Kind: KindHTTP, Status: r.Status, Message: msg}
	}
	return nil
}

// FetchJSON performs one JSON request. It never fails on an unparseable body:
// those are folded into Response.Data. The returned error is always an
// *Error of KindTransport.
func (c *Client) FetchJSON(ctx context.Context, method, path string, body any, tok Token) (*Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+string(tok))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(method, KindTransport.String())
		return nil, &Error{Kind: KindTransport, Message: MsgTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveUpstream(method, KindTransport.String())
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: MsgTransport, Err: err}
	}

	out := &Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
	}
	out.Data, out.Kind = c.normalize(raw, resp.StatusCode, req)

	kind := out.Kind
	if kind == KindNone && !out.OK {
		kind = KindHTTP
	}
	c.metrics.ObserveUpstream(method, kind.String())
	return out, nil
}

func (c *Client) normalize(raw []byte, status int, req *http.Request) (json.RawMessage, Kind) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return json.RawMessage(`{}`), KindNone
	}
	if json.Valid(text) {
		return json.RawMessage(text), KindNone
	}

	if looksLikeHTML(text) {
		msg := fmt.Sprintf("Unexpected HTML response (status %d). Check API base URL configuration.", status)
		c.logger.Warn("backend returned html",
			"method", req.Method,
			"url", req.URL.String(),
			"status", status,
			"title", htmlTitle(text),
			"request_id", req.Header.Get("X-Request-ID"),
		)
		return errorObject(msg), KindHTML
	}

	c.logger.Warn("backend returned invalid json", "method", req.Method, "url", req.URL.String(), "status", status)
	return errorObject(MsgInvalidJSON), KindInvalidJSON
}

func looksLikeHTML(text []byte) bool {
	lower := strings.ToLower(string(text[:min(len(text), 16)]))
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

func htmlTitle(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func errorObject(msg string) json.RawMessage {
	buf, _ := json.Marshal(map[string]string{"error": msg})
	return buf
}

// call issues a request and folds response failures into an *Error, so typed
// endpoints deal with one error path.
func (c *Client) call(ctx context.Context, method, path string, body any, tok Token, fallback string) (*Response, error) {
	resp, err := c.FetchJSON(ctx, method, path, body, tok)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(fallback); err != nil {
		return resp, err
	}
	return resp, nil
}
