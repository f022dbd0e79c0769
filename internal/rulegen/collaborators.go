package rulegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/plancheck/internal/llm"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/worker"
)

// CandidateExtractor finds candidate clauses in one chunk of code text
type CandidateExtractor interface {
	ExtractCandidates(ctx context.Context, chunk string) ([]model.Candidate, error)
}

// CandidateNormalizer turns one candidate into a rule. A nil rule with a nil error means
// the candidate cannot be checked automatically and is dropped.
type CandidateNormalizer interface {
	NormalizeCandidate(ctx context.Context, candidate model.Candidate, authority string) (*model.Rule, error)
}

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second

	extractionMaxTokens    = 2000
	normalizationMaxTokens = 1000
)

// LLMClient sends prompts to a provider with pacing and retries.
// It implements both CandidateExtractor and CandidateNormalizer.
type LLMClient struct {
	provider llm.Provider
	limiter  *worker.Limiter
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// ClientOption configures an LLMClient
type ClientOption func(*LLMClient)

// WithLimiter paces calls per provider name
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(c *LLMClient) { c.limiter = l }
}

// WithRetry sets the attempt count and the first backoff (doubled on every retry)
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *LLMClient) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// NewLLMClient creates a client over provider
func NewLLMClient(provider llm.Provider, opts ...ClientOption) *LLMClient {
	c := &LLMClient{
		provider: provider,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractCandidates asks the model for candidate clauses in chunk
func (c *LLMClient) ExtractCandidates(ctx context.Context, chunk string) ([]model.Candidate, error) {
	text, err := c.complete(ctx, llm.CompletionRequest{
		System:    llm.ExtractionSystem,
		Prompt:    llm.ExtractionPrompt(chunk),
		MaxTokens: extractionMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract candidates: %w", err)
	}

	payload, err := llm.ParseJSONMaybeArray(text)
	if err != nil {
		logger.Warn("extraction response had no JSON", "provider", c.provider.Name(), "chars", len(text))
		return nil, nil
	}

	candidates, err := ParseCandidates(payload)
	if err != nil {
		logger.Warn("extraction response was not a candidate list", "provider", c.provider.Name(), "error", err)
		return nil, nil
	}
	return candidates, nil
}

// NormalizeCandidate asks the model to turn candidate into a rule
func (c *LLMClient) NormalizeCandidate(ctx context.Context, candidate model.Candidate, authority string) (*model.Rule, error) {
	prompt, err := llm.NormalizationPrompt(candidate, authority)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, llm.CompletionRequest{
		System:    llm.NormalizationSystem,
		Prompt:    prompt,
		MaxTokens: normalizationMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("normalize candidate %q: %w", candidate.ClauseReference, err)
	}

	payload, err := llm.ParseJSONMaybeArray(text)
	if err != nil {
		logger.Debug("normalization response had no JSON", "clause", candidate.ClauseReference)
		return nil, nil
	}

	rule, err := ParseNormalizedRule(payload)
	if err != nil {
		logger.Debug("normalization response was not a rule", "clause", candidate.ClauseReference, "error", err)
		return nil, nil
	}
	return rule, nil
}

func (c *LLMClient) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, c.provider.Name()); err != nil {
				return "", fmt.Errorf("rate limit: %w", err)
			}
		}

		resp, err := c.provider.Complete(ctx, req)
		if err == nil {
			return resp.Text, nil
		}
		lastErr = err

		if !llm.IsRetryable(err) || attempt == c.attempts {
			break
		}

		logger.Warn("LLM call failed, retrying",
			"provider", c.provider.Name(), "attempt", attempt, "backoff", backoff, "error", err)
		if err := c.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}

	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// wrapperKeys are tried first when a model wraps its list in an object
var wrapperKeys = []string{"clauses", "candidates", "items", "rules", "results", "data"}

var errNotObject = errors.New("not a JSON object")

// ParseCandidates accepts a JSON array of candidates, a single candidate object, or an
// object wrapping the array under one key. Elements that are not objects are skipped.
func ParseCandidates(payload json.RawMessage) ([]model.Candidate, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if llm.IsJSONArray(payload) {
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
		var out []model.Candidate
		for _, elem := range elems {
			var c model.Candidate
			if !isObject(elem) || json.Unmarshal(elem, &c) != nil {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	}

	if !isObject(payload) {
		return nil, errNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode candidate object: %w", err)
	}
	if inner, ok := wrappedList(fields); ok {
		return ParseCandidates(inner)
	}

	var c model.Candidate
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	return []model.Candidate{c}, nil
}

// wrappedList finds the array inside a wrapper object: a known key first, then any array
// field in key order. Objects that look like a candidate are not wrappers.
func wrappedList(fields map[string]json.RawMessage) (json.RawMessage, bool) {
	if _, ok := fields["clause_text"]; ok {
		return nil, false
	}
	if _, ok := fields["clause_reference"]; ok {
		return nil, false
	}

	for _, key := range wrapperKeys {
		if v, ok := fields[key]; ok && llm.IsJSONArray(v) {
			return v, true
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if llm.IsJSONArray(fields[k]) {
			return fields[k], true
		}
	}
	return nil, false
}

// ParseNormalizedRule decodes a normalizer response. An array yields its first element;
// null or an empty array yields nil.
func ParseNormalizedRule(payload json.RawMessage) (*model.Rule, error) {
	if llm.IsJSONArray(payload) {
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err != nil {
			return nil, fmt.Errorf("decode rule list: %w", err)
		}
		if len(elems) == 0 {
			return nil, nil
		}
		payload = elems[0]
	}

	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "null" {
		return nil, nil
	}
	if !isObject(payload) {
		return nil, errNotObject
	}

	var rule model.Rule
	if err := json.Unmarshal(payload, &rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return &rule, nil
}

func isObject(data json.RawMessage) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "{")
}
