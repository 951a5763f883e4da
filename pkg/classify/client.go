package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tumorscope/internal/errors"
)

// maxResponseBytes bounds how much of a response body is decoded.
const maxResponseBytes = 4 << 20

// File is the content submitted under the "image" field.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Client posts files to a classifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerName selects the tracer from the global provider.
func WithTracerName(name string) ClientOption {
	return func(c *Client) {
		c.tracer = otel.Tracer(name)
	}
}

// NewClient creates a client for the classifier at baseURL. An empty base
// posts to the relative path "/classify".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tracer:     otel.Tracer("tumorscope/classify"),
		logger:     slog.Default().With("component", "classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the full endpoint URL.
func (c *Client) URL() string {
	return c.baseURL + Path
}

// Classify submits f and decodes the response. Any failure to send the
// request, read the body or decode it as JSON is returned as a T001
// transport error; the HTTP status is ignored.
func (c *Client) Classify(ctx context.Context, f File) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "classify.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("file.name", f.Name),
			attribute.String("file.content_type", f.ContentType),
			attribute.Int("file.size", len(f.Content)),
		),
	)
	defer span.End()

	resp, err := c.classify(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("classification request failed", "file", f.Name, "error", err)
		return nil, errors.FromError(err, "T001")
	}

	span.SetAttributes(
		attribute.Bool("classify.success", resp.Success),
		attribute.Bool("classify.demo_mode", resp.DemoMode),
		attribute.Int("classify.predictions", len(resp.Predictions)),
	)
	return resp, nil
}

func (c *Client) classify(ctx context.Context, f File) (*Response, error) {
	body, contentType, err := encodeMultipart(f)
	if err != nil {
		return nil, fmt.Errorf("encode multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.URL(), err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", httpResp.StatusCode, err)
	}
	return &out, nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// encodeMultipart builds the form body. CreateFormFile always sends
// application/octet-stream, so the part header is written by hand to keep
// the file's own type.
func encodeMultipart(f File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldName, quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
