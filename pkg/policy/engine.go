package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Options select the built-in policies and their data.
type Options struct {
	// Builtins names the built-in policies to enable. Nil enables all.
	Builtins []string

	// SuppressDomains is exposed to policies as data.suppress_domains.
	SuppressDomains []string
}

// Engine evaluates Rego deny rules against leads. It implements engine.Screener.
type Engine struct {
	mu       sync.RWMutex
	policies []*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its prepared deny query.
type compiledPolicy struct {
	policy   Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

var _ engine.Screener = (*Engine)(nil)

// NewEngine creates a policy engine with the selected built-in policies.
func NewEngine(logger zerolog.Logger, opts Options) (*Engine, error) {
	domains := make([]interface{}, 0, len(opts.SuppressDomains))
	for _, d := range opts.SuppressDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}

	e := &Engine{
		store: inmem.NewFromObject(map[string]interface{}{
			"suppress_domains": domains,
		}),
		logger: logger.With().Str("component", "policy-engine").Logger(),
	}

	enabled := opts.Builtins
	if enabled == nil {
		enabled = BuiltinNames
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}

	ctx := context.Background()
	for _, p := range GetBuiltinPolicies() {
		if !want[p.Name] {
			continue
		}
		delete(want, p.Name)
		if err := e.compileAndStore(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}
	for name := range want {
		return nil, fmt.Errorf("unknown built-in policy: %s", name)
	}

	e.logger.Debug().
		Int("count", len(e.policies)).
		Msg("Built-in policies loaded")

	return e, nil
}

// LoadPolicies compiles the policy files found at paths.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range policies {
		if err := e.compileAndStore(ctx, p); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", p.Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// compileAndStore prepares the deny query of a policy. Callers hold the
// write lock or own the engine exclusively.
func (e *Engine) compileAndStore(ctx context.Context, p Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	for _, cp := range e.policies {
		if cp.policy.Name == p.Name {
			return fmt.Errorf("duplicate policy name %s", p.Name)
		}
	}

	query, err := rego.New(
		rego.ParsedModule(module),
		rego.Store(e.store),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	if p.Severity == "" {
		p.Severity = SeverityError
	}
	e.policies = append(e.policies, &compiledPolicy{
		policy:   p,
		query:    query,
		compiled: time.Now(),
	})
	return nil
}

// Evaluate runs every policy against the input.
func (e *Engine) Evaluate(ctx context.Context, input Input) ([]Violation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var violations []Violation
	for _, cp := range e.policies {
		results, err := cp.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return nil, fmt.Errorf("policy %s evaluation error: %w", cp.policy.Name, err)
		}
		for _, result := range results {
			if len(result.Expressions) == 0 {
				continue
			}
			denySet, ok := result.Expressions[0].Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, createViolation(cp.policy, d))
			}
		}
	}

	return violations, nil
}

// Screen evaluates the lead. Any blocking violation denies it; an
// evaluation failure is transient so the lead is retried.
func (e *Engine) Screen(ctx context.Context, lead engine.Lead) (*engine.ScreenResult, error) {
	start := time.Now()

	violations, err := e.Evaluate(ctx, NewInput(lead))
	if err != nil {
		return nil, engine.NewTransientError("policy evaluation failed", err).
			WithLead(lead.Identity()).WithOperation("screen")
	}

	result := &engine.ScreenResult{Allowed: true}
	for _, v := range violations {
		if !v.Severity.Blocking() {
			e.logger.Warn().
				Str("email", lead.Identity()).
				Str("policy", v.Policy).
				Msg(v.Message)
			continue
		}
		result.Allowed = false
		result.Reasons = append(result.Reasons, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}

	e.logger.Debug().
		Str("email", lead.Identity()).
		Bool("allowed", result.Allowed).
		Int("violations", len(violations)).
		Dur("duration", time.Since(start)).
		Msg("Lead screened")

	return result, nil
}

// createViolation creates a Violation from a deny rule result.
func createViolation(p Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   p.Name,
		Severity: p.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// ListPolicies returns the loaded policies in evaluation order.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, cp.policy)
	}
	return policies
}
