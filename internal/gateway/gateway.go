package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"poststudio/internal/logging"
	"poststudio/internal/ratelimit"
)

// DefaultIdentity is the quota bucket used by callers without their own key.
const DefaultIdentity = "default"

// Gateway fronts the completion client with quota enforcement. The limiter is
// charged before the network round-trip; whether failed completions keep
// their charge is a policy choice (ChargeFailures).
type Gateway struct {
	client         *Client
	limiter        *ratelimit.Limiter
	chargeFailures bool
}

// New creates a gateway.
func New(client *Client, limiter *ratelimit.Limiter, chargeFailures bool) *Gateway {
	return &Gateway{
		client:         client,
		limiter:        limiter,
		chargeFailures: chargeFailures,
	}
}

// Client returns the underlying completion client.
func (g *Gateway) Client() *Client { return g.client }

// Identity maps a caller-supplied API key to its quota bucket. Callers using
// their own key get their own bucket; everyone else shares the default one.
func Identity(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return DefaultIdentity
}

// CompleteJSON runs a single-shot JSON-mode completion and decodes the
// response body into out. Returns ErrInvalidResponse when the payload does
// not parse as JSON.
func (g *Gateway) CompleteJSON(ctx context.Context, apiKey, systemPrompt, userPrompt string, out interface{}) error {
	identity := Identity(apiKey)
	if err := g.consume(identity); err != nil {
		return err
	}

	text, err := g.client.Complete(ctx, apiKey, systemPrompt, userPrompt, true)
	if err != nil {
		g.maybeRefund(identity)
		return err
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		g.maybeRefund(identity)
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// CompleteChat runs a single-shot plain-text completion over a message
// history.
func (g *Gateway) CompleteChat(ctx context.Context, apiKey string, messages []Message) (string, error) {
	identity := Identity(apiKey)
	if err := g.consume(identity); err != nil {
		return "", err
	}

	text, err := g.client.CompleteMessages(ctx, apiKey, messages, false)
	if err != nil {
		g.maybeRefund(identity)
		return "", err
	}
	return text, nil
}

// OpenStream checks quota and opens a streaming completion. The returned body
// carries the backend's SSE frames; the caller must close it.
func (g *Gateway) OpenStream(ctx context.Context, apiKey, systemPrompt, userPrompt string) (io.ReadCloser, error) {
	identity := Identity(apiKey)
	if err := g.consume(identity); err != nil {
		return nil, err
	}

	body, err := g.client.OpenStream(ctx, apiKey, systemPrompt, userPrompt)
	if err != nil {
		g.maybeRefund(identity)
		return nil, err
	}
	return body, nil
}

func (g *Gateway) consume(identity string) error {
	r := g.limiter.CheckAndConsume(identity)
	if !r.Allowed {
		logging.RateLimit("gateway rejected identity=%s retry_after=%dm", identity, r.RetryAfterMinutes)
		return &RateLimitError{RetryAfterMinutes: r.RetryAfterMinutes}
	}
	return nil
}

func (g *Gateway) maybeRefund(identity string) {
	if g.chargeFailures {
		return
	}
	g.limiter.Refund(identity)
}
