package usecase

import (
	"context"
	"time"
)

// Outcome classifies one unit of per-instrument work.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult is the result of one unit of per-instrument work.
type ItemResult struct {
	Symbol  string
	Outcome Outcome
	Err     error
}

// BatchReport aggregates item results. A symbol may appear once per stage or timeframe.
type BatchReport struct {
	Items []ItemResult
}

func (r *BatchReport) OK(symbol string) {
	r.Items = append(r.Items, ItemResult{Symbol: symbol, Outcome: OutcomeOK})
}

func (r *BatchReport) Skip(symbol string, err error) {
	r.Items = append(r.Items, ItemResult{Symbol: symbol, Outcome: OutcomeSkipped, Err: err})
}

func (r *BatchReport) Fail(symbol string, err error) {
	r.Items = append(r.Items, ItemResult{Symbol: symbol, Outcome: OutcomeFailed, Err: err})
}

// Merge appends another report's items.
func (r *BatchReport) Merge(o BatchReport) {
	r.Items = append(r.Items, o.Items...)
}

func (r BatchReport) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Symbols lists the distinct symbols with the given outcome in first-seen order.
func (r BatchReport) Symbols(o Outcome) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range r.Items {
		if it.Outcome != o {
			continue
		}
		if _, ok := seen[it.Symbol]; ok {
			continue
		}
		seen[it.Symbol] = struct{}{}
		out = append(out, it.Symbol)
	}
	return out
}

// chunk splits symbols into consecutive slices of at most size elements.
func chunk(symbols []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}

// pause sleeps for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
