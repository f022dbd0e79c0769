// Package rulegen generates machine-checkable rule sets from building-code text with the
// help of a language model. The model sits behind two collaborator interfaces, so the
// chunking, defaulting and dedupe logic here is deterministic and testable offline.
package rulegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/worker"
)

// ErrNoCandidates is returned when the extraction model finds no checkable clause
var ErrNoCandidates = errors.New("no candidate clauses found")

// ErrNoText is returned when the document has no text to extract from
var ErrNoText = errors.New("document has no text")

const (
	previewChars   = 200
	signatureChars = 120
)

// Generator runs the two-pass generation: extract candidates per chunk, then normalize
// every candidate into a rule.
type Generator struct {
	extractor  CandidateExtractor
	normalizer CandidateNormalizer
	chunkSize  int
	workers    int
	newID      func() string
	now        func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithChunkSize sets the maximum characters per extraction chunk
func WithChunkSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.chunkSize = n
		}
	}
}

// WithWorkers sets how many model calls run at once
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithIDFunc replaces the random fallback id source
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) { g.newID = fn }
}

// WithClock replaces time.Now
func WithClock(fn func() time.Time) Option {
	return func(g *Generator) { g.now = fn }
}

// NewGenerator creates a Generator
func NewGenerator(extractor CandidateExtractor, normalizer CandidateNormalizer, opts ...Option) *Generator {
	g := &Generator{
		extractor:  extractor,
		normalizer: normalizer,
		chunkSize:  DefaultChunkSize,
		workers:    1,
		newID:      func() string { return uuid.NewString()[:6] },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chunkOutcome struct {
	candidates []model.Candidate
	err        error
}

type normalizeOutcome struct {
	rule *model.Rule
	err  error
}

// Generate builds a deduplicated rule set for authority from code text.
// Chunks and candidates are processed concurrently, but the rule order always follows
// the order of candidates in the text.
func (g *Generator) Generate(ctx context.Context, text, authority string) (*model.ExtractionReport, error) {
	slug := AuthoritySlug(authority)

	chunks := ChunkText(text, g.chunkSize)
	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	log := logger.With("authority", slug)
	log.Info("extracting candidate clauses", "chunks", len(chunks))

	outcomes := worker.Map(ctx, g.workers, chunks, func(ctx context.Context, chunk string) chunkOutcome {
		candidates, err := g.extractor.ExtractCandidates(ctx, chunk)
		src := preview(chunk, previewChars)
		for i := range candidates {
			candidates[i].SourcePreview = src
		}
		return chunkOutcome{candidates: candidates, err: err}
	})

	var candidates []model.Candidate
	var firstErr error
	failed := 0
	for i, out := range outcomes {
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			log.Warn("chunk extraction failed", "chunk", i, "error", out.err)
			continue
		}
		candidates = append(candidates, out.candidates...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(chunks) {
		return nil, fmt.Errorf("extract candidates: %w", firstErr)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	log.Info("normalizing candidates", "candidates", len(candidates))
	normalized := worker.Map(ctx, g.workers, candidates, func(ctx context.Context, c model.Candidate) normalizeOutcome {
		rule, err := g.normalizer.NormalizeCandidate(ctx, c, slug)
		return normalizeOutcome{rule: rule, err: err}
	})

	var rules []model.Rule
	firstErr = nil
	failed = 0
	for _, out := range normalized {
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			log.Warn("candidate normalization failed", "error", out.err)
			continue
		}
		if out.rule == nil {
			continue
		}
		rules = append(rules, g.withDefaults(*out.rule, slug))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(candidates) {
		return nil, fmt.Errorf("normalize candidates: %w", firstErr)
	}

	rules = Dedupe(rules)
	if rules == nil {
		rules = []model.Rule{}
	}

	log.Info("rules generated", "candidates", len(candidates), "rules", len(rules))

	return &model.ExtractionReport{
		Authority:   slug,
		ExtractedAt: g.now().UTC(),
		Chunks:      len(chunks),
		Candidates:  len(candidates),
		Dropped:     len(candidates) - len(rules),
		Count:       len(rules),
		Rules:       rules,
	}, nil
}

// withDefaults fills a missing id as <SLUG>-<clause_reference> (or a short random suffix)
// and a missing authority with the slug
func (g *Generator) withDefaults(rule model.Rule, slug string) model.Rule {
	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" {
		suffix := strings.TrimSpace(rule.ClauseReference)
		if suffix == "" {
			suffix = g.newID()
		}
		rule.ID = slug + "-" + suffix
	}
	if strings.TrimSpace(rule.Authority) == "" {
		rule.Authority = slug
	}
	return rule
}

// Dedupe keeps the first rule for every id and for every clause signature
// (clause reference plus the first 120 characters of the clause text)
func Dedupe(rules []model.Rule) []model.Rule {
	seenIDs := make(map[string]bool)
	seenSigs := make(map[string]bool)

	var out []model.Rule
	for _, r := range rules {
		id := strings.TrimSpace(r.ID)
		sig := Signature(r)

		if id != "" && seenIDs[id] {
			continue
		}
		if seenSigs[sig] {
			continue
		}
		if id != "" {
			seenIDs[id] = true
		}
		seenSigs[sig] = true
		out = append(out, r)
	}
	return out
}

// Signature identifies a clause independently of the id the model chose
func Signature(r model.Rule) string {
	return strings.TrimSpace(r.ClauseReference) + "|" + strings.TrimSpace(preview(r.RawClauseText, signatureChars))
}
