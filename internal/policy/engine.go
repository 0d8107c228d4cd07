package policy

import (
	"context"
	"time"

	"github.com/aegishq/controlplane/internal/obs"
)

// Engine evaluates a fixed, deterministic rule order: authentication
// presence, RBAC, rate limiting, prompt-injection detection, content-safety
// filtering, PII redaction.
type Engine struct {
	rbac        RBAC
	rateLimiter *RateLimiter
}

// NewEngine builds an Engine. rateLimiter may be nil to disable rate
// limiting (e.g. in tests).
func NewEngine(rateLimiter *RateLimiter) *Engine {
	return &Engine{rateLimiter: rateLimiter}
}

// Evaluate runs the full rule set and composes the structured Decision.
// The policy engine never panics on a detected violation; it only returns
// an error for genuine engine bugs.
func (e *Engine) Evaluate(ctx context.Context, req Request, pctx Context) (Decision, error) {
	start := time.Now()

	d := Decision{
		RequestID:         req.RequestID,
		Modifications:     map[string]string{},
		PoliciesEvaluated: []string{},
		ModifiedRequest:   req,
	}

	blocking := false

	// 1. Authentication presence.
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "authentication-presence")
	if pctx.UserID == "" {
		d.PolicyViolations = append(d.PolicyViolations, Violation{
			RuleID: "authentication-presence", Message: "missing user identity", Enforcement: "blocking",
		})
		blocking = true
	}

	// 2. RBAC.
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "rbac")
	if !e.rbac.Allows(pctx.Role, pctx.RequiredAction) {
		d.PolicyViolations = append(d.PolicyViolations, Violation{
			RuleID: "rbac", Message: "role lacks required action: " + pctx.RequiredAction, Enforcement: "blocking",
		})
		blocking = true
	}

	// 3. Rate limiting (default capacity 60/minute per user).
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "rate-limit-per-user")
	if e.rateLimiter != nil && pctx.UserID != "" {
		allowed, err := e.rateLimiter.Allow(ctx, pctx.UserID, "default")
		if err != nil {
			return Decision{}, obs.Wrap(err, obs.Internal, "policy.rate_limit_check_failed", "checking rate limit")
		}
		if !allowed {
			d.PolicyViolations = append(d.PolicyViolations, Violation{
				RuleID: "rate-limit-per-user", Message: "request budget exceeded", Enforcement: "blocking",
			})
			blocking = true
		}
	}

	// 4. Prompt-injection detection.
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "prompt-injection-detection")
	if DetectInjection(req.Prompt) {
		d.PolicyViolations = append(d.PolicyViolations, Violation{
			RuleID: "prompt-injection-detection", Message: "prompt matches a known injection pattern", Enforcement: "blocking",
		})
		blocking = true
	}

	// 5. Content-safety filter.
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "content-safety-filter")
	if category := DetectContentSafety(req.Prompt); category != "" {
		d.PolicyViolations = append(d.PolicyViolations, Violation{
			RuleID: "content-safety-filter", Message: "prompt matches unsafe category: " + category, Enforcement: "blocking",
		})
		blocking = true
	}

	// 6. PII redaction — may modify the request, never blocks by itself.
	d.PoliciesEvaluated = append(d.PoliciesEvaluated, "pii-redaction")
	redacted, modified := RedactPII(req.Prompt)
	modificationMade := false
	if modified {
		d.Modifications["prompt"] = redacted
		d.ModifiedRequest.Prompt = redacted
		d.Warnings = append(d.Warnings, "pii-redaction applied to prompt")
		modificationMade = true
	}

	switch {
	case blocking:
		d.Decision = Deny
	case modificationMade:
		d.Decision = AllowWithModifications
	default:
		d.Decision = Allow
	}

	d.ExecutionTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	obs.PolicyDecisionsTotal.WithLabelValues(string(d.Decision)).Inc()
	return d, nil
}
