package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/httputil"
	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/ratelimit"
)

// Guard authenticates requests and applies rate limits before any handler
// runs. Strategies are tried in a fixed order: bearer tokens first, then
// API keys. A request presenting a bad bearer token is rejected outright
// unless it also carries an API key, in which case the key gets a chance.
type Guard struct {
	strategies []Strategy
	limiter    *ratelimit.Limiter
	usage      *apikeys.UsageRecorder
	metrics    *observability.Metrics
	logger     *observability.Logger
}

// New creates a guard. usage and metrics may be nil.
func New(bearer *BearerStrategy, apiKey *APIKeyStrategy, limiter *ratelimit.Limiter, usage *apikeys.UsageRecorder, metrics *observability.Metrics, logger *observability.Logger) *Guard {
	return &Guard{
		strategies: []Strategy{bearer, apiKey},
		limiter:    limiter,
		usage:      usage,
		metrics:    metrics,
		logger:     logger,
	}
}

// Authenticate runs the full gate for a request: credential resolution,
// rate limiting, and usage recording. On success it returns the principal
// and the tightest rate-limit header state; on failure the returned *Error
// carries the HTTP classification.
func (g *Guard) Authenticate(ctx context.Context, r *http.Request) (*Principal, ratelimit.HeaderInfo, *Error) {
	principal, limits, gateErr := g.resolvePrincipal(ctx, r)
	if gateErr != nil {
		return nil, ratelimit.HeaderInfo{}, gateErr
	}

	headers, gateErr := g.applyLimits(ctx, r, principal, limits)
	if gateErr != nil {
		return nil, headers, gateErr
	}

	if principal.Kind == KindKey && g.usage != nil {
		g.usage.Record(principal.KeyID, httputil.ClientIP(r))
	}

	return principal, headers, nil
}

func (g *Guard) resolvePrincipal(ctx context.Context, r *http.Request) (*Principal, ratelimit.Limits, *Error) {
	type candidate struct {
		strategy   Strategy
		credential string
	}

	var candidates []candidate
	for _, s := range g.strategies {
		if credential, present := s.Extract(r); present {
			candidates = append(candidates, candidate{strategy: s, credential: credential})
		}
	}
	if len(candidates) == 0 {
		g.observeAuth("none", "missing")
		return nil, ratelimit.Limits{}, Unauthorized("authentication required: provide an Authorization: Bearer token or an X-API-Key header")
	}

	for i, c := range candidates {
		principal, limits, gateErr := c.strategy.Authenticate(ctx, c.credential)
		if gateErr == nil {
			g.observeAuth(c.strategy.Name(), "success")
			g.observeStrategyOutcome(c.strategy, "valid")
			return principal, limits, nil
		}
		// A rejected credential falls through to the next scheme; anything
		// other than a plain 401, or a rejection of the last scheme
		// presented, stands.
		if gateErr.Code != CodeUnauthorized || i == len(candidates)-1 {
			g.observeAuth(c.strategy.Name(), string(gateErr.Code))
			g.observeStrategyOutcome(c.strategy, keyValidationOutcome(gateErr))
			return nil, ratelimit.Limits{}, gateErr
		}
		g.observeAuth(c.strategy.Name(), "fallthrough")
	}

	return nil, ratelimit.Limits{}, Unauthorized("authentication required")
}

func keyValidationOutcome(gateErr *Error) string {
	if gateErr.Code == CodeUnauthorized {
		return "invalid"
	}
	return "error"
}

// applyLimits checks the per-IP counter and the per-principal counter for
// every authenticated request, folding both into one header state. The
// loopback exemption applies only to the IP check: a local caller still
// consumes its principal's budget.
func (g *Guard) applyLimits(ctx context.Context, r *http.Request, principal *Principal, limits ratelimit.Limits) (ratelimit.HeaderInfo, *Error) {
	var headers ratelimit.HeaderInfo

	ipHeaders, err := g.limiter.CheckIP(ctx, httputil.ClientIP(r), limits)
	headers.Merge(ipHeaders)
	if gateErr := g.classifyLimitErr(err); gateErr != nil {
		return headers, gateErr
	}

	keyHeaders, err := g.limiter.CheckKey(ctx, principal.RateLimitID(), limits)
	headers.Merge(keyHeaders)
	if gateErr := g.classifyLimitErr(err); gateErr != nil {
		return headers, gateErr
	}

	return headers, nil
}

func (g *Guard) classifyLimitErr(err error) *Error {
	if err == nil {
		return nil
	}
	var exceeded *ratelimit.LimitExceededError
	if errors.As(err, &exceeded) {
		if g.metrics != nil {
			g.metrics.RateLimitRejectionsTotal.WithLabelValues(string(exceeded.Scope), string(exceeded.Window)).Inc()
		}
		return TooManyRequests("rate limit exceeded")
	}
	g.logger.WithError(err).Error("rate limit check failed")
	return Internal("rate limiting unavailable")
}

func (g *Guard) observeAuth(scheme, outcome string) {
	if g.metrics != nil {
		g.metrics.AuthAttemptsTotal.WithLabelValues(scheme, outcome).Inc()
	}
}

// observeStrategyOutcome feeds the key-validation counter; only the API-key
// scheme has one.
func (g *Guard) observeStrategyOutcome(s Strategy, outcome string) {
	if _, ok := s.(*APIKeyStrategy); !ok {
		return
	}
	if g.metrics != nil {
		g.metrics.KeyValidationsTotal.WithLabelValues(outcome).Inc()
	}
}
