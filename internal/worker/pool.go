package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a job
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers.
// Results come back in submission order regardless of completion order.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given number of workers (minimum 1)
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the configured worker count
func (p *Pool) Workers() int {
	return p.workers
}

type indexedJob struct {
	index int
	job   Job
}

// Run executes every job and returns results[i] for jobs[i].
// Jobs are still handed the context after cancellation so they can report ctx.Err() themselves.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan indexedJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range queue {
				// each index is written by exactly one worker
				results[ij.index] = ij.job.Execute(ctx)
			}
		}()
	}

	for i, job := range jobs {
		queue <- indexedJob{index: i, job: job}
	}
	close(queue)
	wg.Wait()

	return results
}

// ErrorCount counts results that carry an error
func ErrorCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r != nil && r.GetError() != nil {
			n++
		}
	}
	return n
}

type funcResult[R any] struct {
	value R
}

func (funcResult[R]) GetError() error { return nil }

type funcJob[T, R any] struct {
	item T
	fn   func(context.Context, T) R
}

func (j funcJob[T, R]) Execute(ctx context.Context) Result {
	return funcResult[R]{value: j.fn(ctx, j.item)}
}

// Map applies fn to every item on a pool of the given size and keeps item order
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) R) []R {
	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = funcJob[T, R]{item: item, fn: fn}
	}

	results := NewPool(workers).Run(ctx, jobs)

	out := make([]R, len(results))
	for i, r := range results {
		out[i] = r.(funcResult[R]).value
	}
	return out
}
