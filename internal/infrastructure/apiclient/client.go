package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"resty.dev/v3"

	"github.com/janhq/jan-chat-sync/internal/infrastructure/metrics"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/observability"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/telemetry"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

const (
	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"
)

type requestStartedAt struct{}

// TokenSource provides the bearer token attached to every request.
// An empty token sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures the backend client.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client is the resty-backed conversation.Gateway.
type Client struct {
	http      *resty.Client
	breaker   *gobreaker.CircuitBreaker
	tokens    TokenSource
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
}

// NewClient creates a client for the chat backend rooted at opts.BaseURL.
func NewClient(opts Options, tokens TokenSource, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *Client {
	if sanitizer == nil {
		sanitizer = telemetry.NewSanitizer(telemetry.PIILevelHashed, "")
	}
	log = log.With().Str("component", "api-client").Logger()

	c := &Client{
		tokens:    tokens,
		sanitizer: sanitizer,
		log:       log,
	}
	c.http = resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAllowMethodDeletePayload(true)
	if opts.Timeout > 0 {
		c.http.SetTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		c.http.SetTransport(opts.Transport)
	}
	c.http.AddRequestMiddleware(c.authorize)
	c.http.AddResponseMiddleware(c.logResponse)
	c.breaker = newBreaker("chat-backend", opts.BreakerMaxFailures, opts.BreakerTimeout, log)
	return c
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// BreakerState reports the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {
	ctx := r.Context()
	r.SetContext(context.WithValue(ctx, requestStartedAt{}, time.Now()))
	if requestID := platformerrors.RequestIDFromContext(ctx); requestID != "" {
		r.SetHeader(headerRequestID, requestID)
	}
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		r.SetHeader(headerAuthorization, "Bearer "+token)
	}
	return nil
}

func (c *Client) logResponse(_ *resty.Client, r *resty.Response) error {
	if c.log.GetLevel() > zerolog.DebugLevel {
		return nil
	}
	ctx := r.Request.Context()
	startedAt, _ := ctx.Value(requestStartedAt{}).(time.Time)

	var responseBody any
	if r.IsError() {
		responseBody = r.Error()
	} else {
		responseBody = r.Result()
	}

	c.log.Debug().
		Str("request_id", platformerrors.RequestIDFromContext(ctx)).
		Int("status", r.StatusCode()).
		Str("method", r.Request.Method).
		Str("path", r.Request.URL).
		Interface("req_body", c.sanitize(r.Request.Body)).
		Interface("resp_body", c.sanitize(responseBody)).
		Dur("latency", time.Since(startedAt)).
		Msg("HTTP client request")
	return nil
}

// sanitize converts a typed body into generic JSON values and masks its content.
func (c *Client) sanitize(body any) any {
	if body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return c.sanitizer.SanitizeFields(generic)
}

// call describes one backend request.
type call struct {
	operation  string
	method     string
	path       string
	pathParams map[string]string
	query      map[string]string
	body       any
	result     enveloped
}

func (c *Client) do(ctx context.Context, cl call) error {
	requestID := platformerrors.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = platformerrors.WithRequestID(ctx, requestID)
	}
	ctx, span := observability.StartGatewaySpan(ctx, cl.operation, cl.method, cl.path, requestID)
	defer span.End()

	if cl.result == nil {
		cl.result = &statusResponse{}
	}
	start := time.Now()
	status := 0

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().
			SetContext(ctx).
			SetResult(cl.result).
			SetError(&envelope{})
		if len(cl.pathParams) > 0 {
			req.SetPathParams(cl.pathParams)
		}
		if len(cl.query) > 0 {
			req.SetQueryParams(cl.query)
		}
		if cl.body != nil {
			req.SetBody(cl.body)
		}

		resp, err := req.Execute(cl.method, cl.path)
		var errBody *envelope
		if resp != nil {
			status = resp.StatusCode()
			errBody, _ = resp.Error().(*envelope)
		}
		if classified := classify(ctx, cl.operation, resp, err, cl.result, errBody); classified != nil {
			return nil, classified
		}
		return nil, nil
	})
	if err != nil && platformerrors.GetPlatformError(err) == nil {
		err = classify(ctx, cl.operation, nil, err, nil, nil)
	}

	outcome := "success"
	if status > 0 {
		observability.RecordStatus(span, status)
	}
	if err != nil {
		outcome = "error"
		if pe := platformerrors.GetPlatformError(err); pe != nil {
			outcome = string(pe.GetErrorType())
		}
		observability.RecordError(span, err)
		c.log.Debug().
			Err(err).
			Str("request_id", requestID).
			Str("operation", cl.operation).
			Int("status", status).
			Msg("backend request failed")
	}
	elapsed := time.Since(start)
	metrics.RecordGatewayRequest(cl.operation, outcome, elapsed)
	observability.RecordGatewayCall(ctx, cl.operation, outcome, elapsed)
	return err
}
