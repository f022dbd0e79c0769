package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// DocumentChecker checks one drawing file against an authority's rule set
type DocumentChecker interface {
	CheckFile(ctx context.Context, authority, path string) (*model.CheckReport, error)
}

// CheckJob checks a single drawing
type CheckJob struct {
	Path      string
	Authority string
	Checker   DocumentChecker
}

// Execute runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &CheckResult{Path: j.Path, Error: err}
	}
	report, err := j.Checker.CheckFile(ctx, j.Authority, j.Path)
	return &CheckResult{
		Path:   j.Path,
		Report: report,
		Error:  err,
	}
}

// CheckResult is the outcome of one drawing check
type CheckResult struct {
	Path   string
	Report *model.CheckReport
	Error  error
}

// GetError returns the error from the check
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchChecker checks many drawings concurrently against one rule set
type BatchChecker struct {
	checker     DocumentChecker
	concurrency int
}

// NewBatchChecker creates a batch checker
func NewBatchChecker(checker DocumentChecker, concurrency int) *BatchChecker {
	return &BatchChecker{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessFiles checks every path; results are in path order
func (b *BatchChecker) ProcessFiles(ctx context.Context, authority string, paths []string) []*CheckResult {
	if len(paths) == 0 {
		return []*CheckResult{}
	}

	jobs := make([]Job, len(paths))
	for i, path := range paths {
		jobs[i] = &CheckJob{
			Path:      path,
			Authority: authority,
			Checker:   b.checker,
		}
	}

	results := NewPool(b.concurrency).Run(ctx, jobs)

	checkResults := make([]*CheckResult, len(results))
	for i, result := range results {
		checkResults[i] = result.(*CheckResult)
	}
	return checkResults
}

// ProcessListFile reads drawing paths from a list file and checks them
func (b *BatchChecker) ProcessListFile(ctx context.Context, authority, listPath string) ([]*CheckResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessFiles(ctx, authority, paths), nil
}

// ReadPathsFromFile reads one path per line, skipping blanks, comments and repeats
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
