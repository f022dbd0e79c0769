package rulegen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/plancheck/internal/llm"
	"github.com/ppiankov/plancheck/internal/model"
)

func testCandidate(ref string) model.Candidate {
	return model.Candidate{ClauseReference: ref, ClauseText: "clause " + ref}
}

type fakeExtractor struct {
	mu     sync.Mutex
	byText map[string][]model.Candidate
	errFor map[string]error
	seen   []string
}

func (f *fakeExtractor) ExtractCandidates(ctx context.Context, chunk string) ([]model.Candidate, error) {
	f.mu.Lock()
	f.seen = append(f.seen, chunk)
	f.mu.Unlock()

	for key, err := range f.errFor {
		if strings.Contains(chunk, key) {
			return nil, err
		}
	}
	var out []model.Candidate
	for key, cs := range f.byText {
		if strings.Contains(chunk, key) {
			out = append(out, cs...)
		}
	}
	return out, nil
}

// fakeNormalizer maps a clause reference to a rule; references listed in drop are rejected
type fakeNormalizer struct {
	drop map[string]bool
	fail error
	fn   func(c model.Candidate) model.Rule
}

func (f *fakeNormalizer) NormalizeCandidate(ctx context.Context, c model.Candidate, authority string) (*model.Rule, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if f.drop[c.ClauseReference] {
		return nil, nil
	}
	if f.fn != nil {
		r := f.fn(c)
		return &r, nil
	}
	return &model.Rule{
		ClauseReference:  c.ClauseReference,
		RawClauseText:    c.ClauseText,
		NotesForReviewer: c.SourcePreview,
	}, nil
}

func TestGenerator_OrderDefaultsAndPreview(t *testing.T) {
	ex := &fakeExtractor{byText: map[string][]model.Candidate{
		"PART-A": {testCandidate("A1"), testCandidate("A2")},
		"PART-B": {testCandidate("B1"), {ClauseText: "no reference"}},
	}}
	norm := &fakeNormalizer{drop: map[string]bool{"A2": true}}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	g := NewGenerator(ex, norm,
		WithChunkSize(20),
		WithWorkers(4),
		WithIDFunc(func() string { return "abc123" }),
		WithClock(func() time.Time { return fixed }),
	)

	report, err := g.Generate(context.Background(), "PART-A clauses\n\nPART-B clauses", "dublin council")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wantIDs := []string{"DUBLIN_COUNCIL-A1", "DUBLIN_COUNCIL-B1", "DUBLIN_COUNCIL-abc123"}
	if len(report.Rules) != len(wantIDs) {
		t.Fatalf("Expected %d rules, got %+v", len(wantIDs), report.Rules)
	}
	for i, id := range wantIDs {
		if report.Rules[i].ID != id {
			t.Errorf("rule %d: expected id %s, got %s", i, id, report.Rules[i].ID)
		}
		if report.Rules[i].Authority != "DUBLIN_COUNCIL" {
			t.Errorf("rule %d: expected default authority, got %q", i, report.Rules[i].Authority)
		}
	}

	if report.Rules[0].NotesForReviewer != "PART-A clauses" {
		t.Errorf("Expected source preview to reach the normalizer, got %q", report.Rules[0].NotesForReviewer)
	}
	if report.Chunks != 2 || report.Candidates != 4 || report.Count != 3 || report.Dropped != 1 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	if report.Authority != "DUBLIN_COUNCIL" || !report.ExtractedAt.Equal(fixed) {
		t.Errorf("Unexpected report header: %+v", report)
	}
}

func TestGenerator_KeepsModelIDsAndAuthority(t *testing.T) {
	ex := &fakeExtractor{byText: map[string][]model.Candidate{"x": {testCandidate("D1")}}}
	norm := &fakeNormalizer{fn: func(c model.Candidate) model.Rule {
		return model.Rule{ID: " NCC-D1 ", Authority: "NCC", ClauseReference: c.ClauseReference}
	}}

	report, err := NewGenerator(ex, norm).Generate(context.Background(), "x", "other")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Rules[0].ID != "NCC-D1" || report.Rules[0].Authority != "NCC" {
		t.Errorf("Expected model id and authority to be kept, got %+v", report.Rules[0])
	}
}

func TestGenerator_Errors(t *testing.T) {
	boom := errors.New("provider down")

	t.Run("no text", func(t *testing.T) {
		_, err := NewGenerator(&fakeExtractor{}, &fakeNormalizer{}).Generate(context.Background(), " \n\n ", "X")
		if !errors.Is(err, ErrNoText) {
			t.Errorf("Expected ErrNoText, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := NewGenerator(&fakeExtractor{}, &fakeNormalizer{}).Generate(context.Background(), "text", "X")
		if !errors.Is(err, ErrNoCandidates) {
			t.Errorf("Expected ErrNoCandidates, got %v", err)
		}
	})

	t.Run("every chunk failed", func(t *testing.T) {
		ex := &fakeExtractor{errFor: map[string]error{"text": boom}}
		_, err := NewGenerator(ex, &fakeNormalizer{}).Generate(context.Background(), "text", "X")
		if !errors.Is(err, boom) {
			t.Errorf("Expected provider error, got %v", err)
		}
	})

	t.Run("one chunk failed", func(t *testing.T) {
		ex := &fakeExtractor{
			byText: map[string][]model.Candidate{"good": {testCandidate("G1")}},
			errFor: map[string]error{"bad": boom},
		}
		report, err := NewGenerator(ex, &fakeNormalizer{}, WithChunkSize(5)).Generate(context.Background(), "bad\n\ngood", "X")
		if err != nil {
			t.Fatalf("Expected partial success, got %v", err)
		}
		if report.Count != 1 {
			t.Errorf("Expected 1 rule, got %d", report.Count)
		}
	})

	t.Run("every normalization failed", func(t *testing.T) {
		ex := &fakeExtractor{byText: map[string][]model.Candidate{"text": {testCandidate("A")}}}
		_, err := NewGenerator(ex, &fakeNormalizer{fail: boom}).Generate(context.Background(), "text", "X")
		if !errors.Is(err, boom) {
			t.Errorf("Expected provider error, got %v", err)
		}
	})

	t.Run("all dropped is an empty rule set", func(t *testing.T) {
		ex := &fakeExtractor{byText: map[string][]model.Candidate{"text": {testCandidate("A")}}}
		report, err := NewGenerator(ex, &fakeNormalizer{drop: map[string]bool{"A": true}}).Generate(context.Background(), "text", "X")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if report.Rules == nil || len(report.Rules) != 0 || report.Dropped != 1 {
			t.Errorf("Expected an empty, non-nil rule list, got %+v", report)
		}
	})
}

func TestDedupe(t *testing.T) {
	long := strings.Repeat("x", 150)
	rules := []model.Rule{
		{ID: "R1", ClauseReference: "1", RawClauseText: "a"},
		{ID: "R1", ClauseReference: "2", RawClauseText: "b"},               // repeated id
		{ID: "R2", ClauseReference: "1", RawClauseText: "a"},               // repeated signature
		{ID: "R3", ClauseReference: "3", RawClauseText: long + "tail one"}, // signature uses 120 chars
		{ID: "R4", ClauseReference: "3", RawClauseText: long + "tail two"},
		{ID: "", ClauseReference: "4", RawClauseText: "c"},
		{ID: "", ClauseReference: "5", RawClauseText: "d"},
	}

	got := Dedupe(rules)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID+"/"+r.ClauseReference)
	}
	want := []string{"R1/1", "R3/3", "/4", "/5"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, ids)
	}
}

func TestGenerator_DevProviderEndToEnd(t *testing.T) {
	client := NewLLMClient(llm.NewDevProvider())
	g := NewGenerator(client, client, WithWorkers(2))

	report, err := g.Generate(context.Background(), "Part D - Access and egress\n\nCorridors and title blocks.", "ncc")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.Count != 2 {
		t.Fatalf("Expected 2 rules, got %+v", report.Rules)
	}
	numeric := report.Rules[0]
	if numeric.ID != "NCC-EX-1" || numeric.TechnicalCheck == nil || numeric.TechnicalCheck.Type != model.CheckNumeric {
		t.Errorf("Unexpected numeric rule: %+v", numeric)
	}
	if v, err := numeric.TechnicalCheck.NumericValue(); err != nil || v != 900 {
		t.Errorf("Expected value 900, got %v %v", v, err)
	}
	presence := report.Rules[1]
	if presence.ID != "NCC-EX-2" || len(presence.TechnicalCheck.ExampleTextMatches) != 3 {
		t.Errorf("Unexpected presence rule: %+v", presence)
	}
}
