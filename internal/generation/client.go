package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"studysync/internal/domain"
	"studysync/internal/logx"
	"studysync/internal/ports"
	"studysync/internal/retry"
	"studysync/internal/telemetry"
)

// Client issues generation requests with bounded retry and tolerant parsing.
// It keeps no state between calls.
type Client struct {
	generator ports.Generator
	prompts   *PromptSet
	validator *Validator
	policy    retry.Policy
	sleeper   retry.Sleeper
	fallbacks Fallbacks
	log       pslog.Logger
	metrics   *telemetry.Metrics
	newID     func() string
}

// Option configures a Client.
type Option func(*Client)

func WithPrompts(set *PromptSet) Option {
	return func(c *Client) {
		if set != nil {
			c.prompts = set
		}
	}
}

// WithPolicy overrides attempts and delays. Retryable is always decided by
// the client.
func WithPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

func WithSleeper(sleeper retry.Sleeper) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

func WithFallbacks(fallbacks Fallbacks) Option {
	return func(c *Client) { c.fallbacks = fallbacks }
}

func WithLogger(log pslog.Logger) Option {
	return func(c *Client) { c.log = logx.OrDiscard(log) }
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// NewClient builds a client with the embedded prompts, three attempts with
// exponential backoff and the notes fallback.
func NewClient(generator ports.Generator, opts ...Option) (*Client, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	c := &Client{
		generator: generator,
		prompts:   DefaultPrompts(),
		validator: validator,
		policy:    retry.Default(),
		sleeper:   retry.TimerSleeper{},
		fallbacks: DefaultFallbacks(),
		log:       logx.Discard(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request sends payload and returns the typed result. Failures are
// *domain.RequestError.
func (c *Client) Request(ctx context.Context, payload domain.RequestPayload) (domain.Result, error) {
	kind := payload.Kind()
	log := logx.WithRequest(c.log, c.newID(), string(kind))
	started := time.Now()

	prompt, err := c.prompts.Render(kind, payload.Text())
	if err != nil {
		return domain.Result{}, &domain.RequestError{Kind: kind, Reason: domain.ErrUpstreamRejected, Cause: err}
	}
	req := ports.GenerateRequest{Prompt: prompt, Images: payload.Images()}

	policy := c.policy
	policy.Retryable = retryableFor(ctx)
	attempts := 0

	raw, err := retry.Do(ctx, policy, c.sleeper, func(ctx context.Context, attempt int) (string, error) {
		attempts = attempt + 1
		log.Debug("generation attempt", "attempt", attempts, "images", len(req.Images))
		text, err := c.generator.Generate(ctx, req)
		switch {
		case err == nil:
			c.metrics.GenerationAttempt(string(kind), "success")
		case policy.Retryable(err):
			c.metrics.GenerationAttempt(string(kind), "retryable")
			log.Warn("generation attempt failed", "attempt", attempts, "retryable", true, "err", err)
		default:
			c.metrics.GenerationAttempt(string(kind), "rejected")
			log.Warn("generation attempt failed", "attempt", attempts, "retryable", false, "err", err)
		}
		return text, err
	})
	if err != nil {
		reqErr := classify(kind, attempts, err)
		c.metrics.GenerationRequest(string(kind), resultLabel(reqErr.Reason), time.Since(started))
		log.Error("generation request failed", "attempts", attempts, "err", reqErr)
		return domain.Result{}, reqErr
	}

	result, err := c.validator.ParseResult(kind, raw)
	if err != nil {
		if fallback, ok := c.fallbacks[kind]; ok && fallback != nil {
			c.metrics.GenerationRequest(string(kind), "fallback", time.Since(started))
			log.Warn("generation response malformed, using fallback", "err", err)
			result = fallback()
			result.Kind = kind
			result.Fallback = true
			return result, nil
		}
		c.metrics.GenerationRequest(string(kind), "malformed", time.Since(started))
		log.Error("generation response malformed", "err", err)
		return domain.Result{}, &domain.RequestError{Kind: kind, Reason: domain.ErrMalformedResponse, Attempts: attempts, Cause: err}
	}

	c.metrics.GenerationRequest(string(kind), "success", time.Since(started))
	log.Info("generation request complete", "attempts", attempts, "elapsed", time.Since(started).String())
	return result, nil
}

// retryableFor retries overload signals and transport failures, never
// explicit rejections, and nothing once ctx is done.
func retryableFor(ctx context.Context) func(error) bool {
	return func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		var upstream *ports.UpstreamError
		if errors.As(err, &upstream) {
			return upstream.Overloaded()
		}
		return true
	}
}

func classify(kind domain.InstructionKind, attempts int, err error) *domain.RequestError {
	var exhausted *retry.Exhausted
	if errors.As(err, &exhausted) {
		return &domain.RequestError{Kind: kind, Reason: domain.ErrExhaustedRetries, Attempts: exhausted.Attempts, Cause: exhausted.Last}
	}

	cause := err
	var stopped *retry.Stopped
	if errors.As(err, &stopped) {
		cause = stopped.Err
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return &domain.RequestError{Kind: kind, Reason: domain.ErrExhaustedRetries, Attempts: attempts, Cause: cause}
	}
	return &domain.RequestError{Kind: kind, Reason: domain.ErrUpstreamRejected, Attempts: attempts, Cause: cause}
}

func resultLabel(reason error) string {
	switch {
	case errors.Is(reason, domain.ErrExhaustedRetries):
		return "exhausted"
	case errors.Is(reason, domain.ErrMalformedResponse):
		return "malformed"
	default:
		return "rejected"
	}
}
