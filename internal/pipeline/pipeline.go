package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/plancheck/internal/cache"
	"github.com/ppiankov/plancheck/internal/check"
	"github.com/ppiankov/plancheck/internal/extract"
	"github.com/ppiankov/plancheck/internal/llm"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/metrics"
	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/rulegen"
	"github.com/ppiankov/plancheck/internal/score"
	"github.com/ppiankov/plancheck/internal/store"
	"github.com/ppiankov/plancheck/internal/validate"
	"github.com/ppiankov/plancheck/internal/worker"
)

// ErrNoProvider is returned when rule extraction is requested without a language model
var ErrNoProvider = errors.New("no LLM provider configured")

// Deps are the collaborators a Pipeline is built from. Only Store is required.
type Deps struct {
	Store    store.RuleStore
	Provider llm.Provider     // nil disables rule extraction
	Cache    cache.Cache      // completion and robots.txt cache, may be nil
	Metrics  *metrics.Metrics // may be nil
	Limiter  *worker.Limiter  // paces LLM calls and document downloads, may be nil
}

// Pipeline wires document reading, rule storage, checking and rule generation together
type Pipeline struct {
	config    model.Config
	store     store.RuleStore
	generator *rulegen.Generator
	fetcher   *Fetcher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a Pipeline. The provider is wrapped so real completions are measured and
// repeated prompts are answered from the cache.
func New(cfg model.Config, deps Deps) *Pipeline {
	p := &Pipeline{
		config:  cfg,
		store:   deps.Store,
		fetcher: NewFetcher(cfg.HTTP, deps.Limiter, deps.Cache),
		metrics: deps.Metrics,
		now:     time.Now,
	}

	if deps.Provider != nil {
		provider := deps.Provider
		if deps.Metrics != nil {
			provider = llm.NewObservedProvider(provider, deps.Metrics.ObserveCompletion)
		}
		if deps.Cache != nil {
			provider = llm.NewCachedProvider(provider, deps.Cache, cfg.Cache.TTL)
		}

		opts := []rulegen.ClientOption{rulegen.WithRetry(cfg.LLM.MaxRetries, time.Second)}
		if deps.Limiter != nil {
			opts = append(opts, rulegen.WithLimiter(deps.Limiter))
		}
		client := rulegen.NewLLMClient(provider, opts...)

		p.generator = rulegen.NewGenerator(client, client,
			rulegen.WithChunkSize(cfg.Extraction.ChunkSize),
			rulegen.WithWorkers(cfg.Concurrency.LLMWorkers),
		)
	}

	return p
}

// NewProvider builds the configured LLM provider; extraction.dev_mode selects the
// offline dev provider.
func NewProvider(ctx context.Context, cfg model.Config) (llm.Provider, error) {
	if cfg.Extraction.DevMode {
		return llm.NewDevProvider(), nil
	}
	return llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM))
}

// Store returns the rule store the pipeline reads from
func (p *Pipeline) Store() store.RuleStore {
	return p.store
}

// CanExtract reports whether a language model is configured
func (p *Pipeline) CanExtract() bool {
	return p.generator != nil
}

// Rules loads the rule set for authority
func (p *Pipeline) Rules(ctx context.Context, authority string) (string, []model.Rule, error) {
	slug := rulegen.AuthoritySlug(authority)
	rules, err := p.store.Load(ctx, slug)
	if err != nil {
		return slug, nil, err
	}
	return slug, rules, nil
}

// CheckText checks already extracted drawing text against the authority's rule set
func (p *Pipeline) CheckText(ctx context.Context, authority, source, text string) (report *model.CheckReport, err error) {
	start := p.now()
	defer func() { p.metrics.ObserveCheck(start, report, err) }()

	return p.checkText(ctx, authority, source, text)
}

// CheckDocument extracts the text of a drawing (PDF, HTML or text) and checks it
func (p *Pipeline) CheckDocument(ctx context.Context, authority, name string, data []byte) (report *model.CheckReport, err error) {
	start := p.now()
	defer func() { p.metrics.ObserveCheck(start, report, err) }()

	text, err := extract.DocumentText(name, data)
	if err != nil {
		return nil, err
	}
	return p.checkText(ctx, authority, name, text)
}

// CheckFile reads and checks one drawing from disk
func (p *Pipeline) CheckFile(ctx context.Context, authority, path string) (*model.CheckReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drawing: %w", err)
	}
	return p.CheckDocument(ctx, authority, path, data)
}

// CheckURL downloads and checks one drawing
func (p *Pipeline) CheckURL(ctx context.Context, authority, rawURL string) (*model.CheckReport, error) {
	fetched, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch drawing: %w", err)
	}
	report, err := p.CheckDocument(ctx, authority, fetched.Name, fetched.Data)
	if err != nil {
		return nil, err
	}
	report.Source = fetched.FinalURL
	return report, nil
}

func (p *Pipeline) checkText(ctx context.Context, authority, source, text string) (*model.CheckReport, error) {
	slug, rules, err := p.Rules(ctx, authority)
	if err != nil {
		return nil, err
	}

	issues := validate.ValidateRuleSet(rules)
	if errs, warns := validate.Count(issues); errs+warns > 0 {
		logger.Debug("rule set has validation issues", "authority", slug, "errors", errs, "warnings", warns)
	}

	results := check.Check(rules, text)
	report := &model.CheckReport{
		Authority:  slug,
		Source:     source,
		CheckedAt:  p.now().UTC(),
		TextLength: len([]rune(text)),
		Results:    results,
		Summary:    score.Summarize(results, rules),
	}
	if len(issues) > 0 {
		report.Validation = issues
	}

	logger.Info("drawing checked",
		"authority", slug,
		"source", source,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed,
		"index", report.Summary.Index,
	)
	return report, nil
}

// ExtractRules generates a rule set for authority from code text and saves it,
// replacing any previous set for the same authority.
func (p *Pipeline) ExtractRules(ctx context.Context, authority, source, text string) (*model.ExtractionReport, error) {
	if p.generator == nil {
		return nil, ErrNoProvider
	}

	report, err := p.generator.Generate(ctx, text, authority)
	if err != nil {
		return nil, fmt.Errorf("generate rules: %w", err)
	}
	report.Source = source

	issues := validate.ValidateRuleSet(report.Rules)
	if len(issues) > 0 {
		report.Validation = issues
		errs, warns := validate.Count(issues)
		logger.Warn("generated rules have validation issues", "authority", report.Authority, "errors", errs, "warnings", warns)
	}

	if err := p.store.Save(ctx, report.Authority, report.Rules); err != nil {
		return nil, fmt.Errorf("save rules: %w", err)
	}
	p.metrics.AddRulesExtracted(report.Authority, report.Count)

	logger.Info("rules extracted", "authority", report.Authority, "source", source, "count", report.Count, "dropped", report.Dropped)
	return report, nil
}

// ExtractRulesFromDocument reads a code document (PDF, HTML or text) and extracts rules from it
func (p *Pipeline) ExtractRulesFromDocument(ctx context.Context, authority, name string, data []byte) (*model.ExtractionReport, error) {
	text, err := extract.DocumentText(name, data)
	if err != nil {
		return nil, err
	}
	return p.ExtractRules(ctx, authority, name, text)
}

// ExtractRulesFromFile reads a code document from disk and extracts rules from it
func (p *Pipeline) ExtractRulesFromFile(ctx context.Context, authority, path string) (*model.ExtractionReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return p.ExtractRulesFromDocument(ctx, authority, path, data)
}

// ExtractRulesFromURL downloads a code document and extracts rules from it
func (p *Pipeline) ExtractRulesFromURL(ctx context.Context, authority, rawURL string) (*model.ExtractionReport, error) {
	fetched, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	text, err := extract.DocumentText(fetched.Name, fetched.Data)
	if err != nil {
		return nil, err
	}
	return p.ExtractRules(ctx, authority, fetched.FinalURL, text)
}
