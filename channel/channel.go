package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/crmarques/mobilectl/debugctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MediaTypeJSON = "application/json"
	MediaTypeXML  = "application/xml"
	MediaTypeText = "text/plain"
)

// Channel composes one request. Configuration calls never fail and return the
// same channel; values are frozen when the request is dispatched.
type Channel struct {
	session  *Session
	segments []string
	headers  map[string]string
	query    map[string]string
}

func (c *Channel) Header(name string, value string) *Channel {
	name = strings.TrimSpace(name)
	if name == "" {
		return c
	}
	c.headers[http.CanonicalHeaderKey(name)] = value
	return c
}

// Path appends one or more slash separated segments. Empty segments are
// dropped.
func (c *Channel) Path(segment string) *Channel {
	for _, part := range strings.Split(segment, "/") {
		if part == "" {
			continue
		}
		c.segments = append(c.segments, part)
	}
	return c
}

func (c *Channel) Query(name string, value string) *Channel {
	if name == "" {
		return c
	}
	c.query[name] = value
	return c
}

func (c *Channel) URL() string {
	target := *c.session.baseURL

	if len(c.segments) > 0 {
		target.Path = target.Path + "/" + strings.Join(c.segments, "/")
	}

	if len(c.query) > 0 {
		values := url.Values{}
		for key, value := range c.query {
			values.Set(key, value)
		}
		target.RawQuery = values.Encode()
	}

	return target.String()
}

func (c *Channel) Get(ctx context.Context) (*Response, error) {
	return c.Send(ctx, http.MethodGet, nil)
}

func (c *Channel) Delete(ctx context.Context) (*Response, error) {
	return c.Send(ctx, http.MethodDelete, nil)
}

func (c *Channel) Post(ctx context.Context, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPost, body)
}

func (c *Channel) Put(ctx context.Context, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPut, body)
}

func (c *Channel) Patch(ctx context.Context, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPatch, body)
}

// Go dispatches in its own goroutine and calls done exactly once.
func (c *Channel) Go(ctx context.Context, method string, body any, done func(*Response, error)) {
	go func() {
		response, err := c.Send(ctx, method, body)
		if done != nil {
			done(response, err)
		}
	}()
}

func (c *Channel) Send(ctx context.Context, method string, body any) (*Response, error) {
	resolvedMethod := strings.ToUpper(strings.TrimSpace(method))
	if resolvedMethod == "" {
		return nil, validationError("request method is required", nil)
	}

	request, clientRequestID, err := c.newRequest(ctx, resolvedMethod, body)
	if err != nil {
		return nil, err
	}

	ctx, span := c.session.tracer.Start(ctx, "mobilectl.request "+resolvedMethod,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", resolvedMethod),
			attribute.String("url.path", request.URL.Path),
			attribute.String("mobilectl.client_request_id", clientRequestID),
		),
	)
	defer span.End()

	response, err := c.execute(ctx, request.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", response.StatusCode))
	return response, nil
}

func (c *Channel) newRequest(ctx context.Context, method string, body any) (*http.Request, string, error) {
	requestBody, defaultContentType, err := encodeRequestBody(body)
	if err != nil {
		return nil, "", err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		bodyReader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.URL(), bodyReader)
	if err != nil {
		return nil, "", internalError("failed to create remote request", err)
	}

	for _, key := range sortedKeys(c.session.defaultHeaders) {
		request.Header.Set(key, c.session.defaultHeaders[key])
	}
	for _, key := range sortedKeys(c.headers) {
		request.Header.Set(key, c.headers[key])
	}
	if requestBody != nil && request.Header.Get("Content-Type") == "" && defaultContentType != "" {
		request.Header.Set("Content-Type", defaultContentType)
	}

	clientRequestID := uuid.NewString()
	request.Header.Set(headerVersion, c.session.apiVersion)
	request.Header.Set(headerClientRequestID, clientRequestID)

	return request, clientRequestID, nil
}

func (c *Channel) execute(ctx context.Context, request *http.Request) (*Response, error) {
	if c.session.limiter != nil {
		if err := c.session.limiter.Wait(ctx); err != nil {
			return nil, transportError("request throttling interrupted", err)
		}
	}

	logger := debugctx.Logger(ctx).V(debugctx.LevelDebug)
	logger.Info("http request",
		"method", request.Method,
		"url", redactURLForDebug(request.URL),
		"clientRequestId", request.Header.Get(headerClientRequestID),
	)

	started := time.Now()
	httpResponse, err := c.session.client.Do(request)
	if err != nil {
		c.observe(request.Method, 0, time.Since(started))
		logger.Info("http request failed", "method", request.Method, "url", redactURLForDebug(request.URL), "error", err.Error())
		return nil, transportError("remote request failed", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBytes+1))
	c.observe(request.Method, httpResponse.StatusCode, time.Since(started))
	if err != nil {
		return nil, transportError("failed to read remote response body", err)
	}
	if len(body) > maxResponseBytes {
		return nil, parseError(fmt.Sprintf("remote response body exceeds %d bytes", maxResponseBytes), nil)
	}

	logger.Info("http response",
		"method", request.Method,
		"url", redactURLForDebug(request.URL),
		"status", httpResponse.StatusCode,
		"requestId", httpResponse.Header.Get(headerRequestID),
	)
	debugctx.Logger(ctx).V(debugctx.LevelTrace).Info("http response body", "body", summarizeBody(body))

	response := &Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header.Clone(),
		Body:       body,
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return response, classifyStatusError(httpResponse.StatusCode, httpResponse.Header, body)
	}

	value, err := decodeResponseValue(httpResponse.Header.Get("Content-Type"), body)
	if err != nil {
		return response, err
	}
	response.Value = value
	return response, nil
}

func (c *Channel) observe(method string, status int, duration time.Duration) {
	if c.session.observer == nil {
		return
	}
	c.session.observer.ObserveRequest(method, status, duration)
}

// encodeRequestBody returns the wire bytes and the content type implied by
// the body's Go type.
func encodeRequestBody(body any) ([]byte, string, error) {
	switch typed := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(typed), MediaTypeText, nil
	case []byte:
		return typed, "", nil
	case json.RawMessage:
		return []byte(typed), MediaTypeJSON, nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, "", validationError("failed to encode JSON request body", err)
		}
		return encoded, MediaTypeJSON, nil
	}
}

func redactURLForDebug(value *url.URL) string {
	if value == nil {
		return ""
	}

	cloned := *value
	cloned.User = nil
	return cloned.String()
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
