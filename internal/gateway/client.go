package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"spaces-client/internal/dto"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "Gateway"

// Client is the typed HTTP+JSON gateway to the spaces service. It never
// retries; callers own retry policy.
type Client struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	logger   logger.ILogger
	tracer   trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. to inject a transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func NewClient(baseURL string, timeout time.Duration, log logger.ILogger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
		logger:   log,
		tracer:   otel.Tracer("spaces-client/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// validateRequest turns validator failures into a ValidationError naming
// the first offending field.
func (c *Client) validateRequest(req interface{}) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.NewValidationError(fe.Field(), fmt.Sprintf("failed %q constraint", fe.Tag()))
	}
	return apperror.NewValidationError("", err.Error())
}

type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	length      int64
}

// do executes one request and decodes a 2xx body into out (nil skips decoding).
func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, cl.op, trace.WithAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("http.path", cl.path),
	))
	defer span.End()

	err := c.roundTrip(ctx, cl, out, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperror.Kind(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call, out interface{}, span trace.Span) error {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return apperror.NewValidationError("url", err.Error())
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.length > 0 {
		req.ContentLength = cl.length
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn(module, "Request failed", map[string]interface{}{"op": cl.op, "error": err.Error()})
		return &apperror.NetworkError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperror.NetworkError{Op: cl.op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug(module, "Request completed", map[string]interface{}{
		"op":          cl.op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apperror.RemoteError{Op: cl.op, StatusCode: resp.StatusCode, Message: remoteMessage(bodyBytes)}
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = bodyBytes
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &apperror.MalformedPayloadError{Op: cl.op, Err: err}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out interface{}) error {
	cl := call{op: op, method: method, path: path}
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		cl.body = bytes.NewReader(payloadBytes)
		cl.contentType = "application/json"
	}
	return c.do(ctx, cl, out)
}

// remoteMessage extracts {message} or {error} from an error body.
func remoteMessage(body []byte) string {
	var env dto.MessageResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}
