package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ichaaulia/supercart/cart"
)

// SearchResult carries the outcome of one debounced lookup back to the UI.
type SearchResult struct {
	Query    string
	Products []cart.Product
	Err      error
}

// Searcher debounces free-text queries before running them against the
// Resolver. A query shorter than MinLength clears any pending lookup; a new
// query within the debounce window cancels the pending one and restarts the
// timer, so at most one lookup runs per quiescent input.
type Searcher struct {
	resolver *Resolver
	debounce time.Duration
	minLen   int
	deliver  func(SearchResult)

	mu      sync.Mutex
	timer   *time.Timer
	pending context.CancelFunc
	gen     uint64 // bumped per keystroke; stale lookups never deliver
	closed  bool
	wg      sync.WaitGroup
}

// NewSearcher builds a Searcher that delivers results through the supplied
// callback. The callback runs on the lookup goroutine.
func NewSearcher(resolver *Resolver, debounce time.Duration, minLen int, deliver func(SearchResult)) *Searcher {
	if minLen < 1 {
		minLen = 1
	}
	return &Searcher{
		resolver: resolver,
		debounce: debounce,
		minLen:   minLen,
		deliver:  deliver,
	}
}

// Query registers a keystroke. The lookup fires only after the debounce
// window passes with no further calls.
func (s *Searcher) Query(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.cancelPendingLocked()
	s.gen++

	if len([]rune(strings.TrimSpace(text))) < s.minLen {
		return
	}

	query, gen := text, s.gen
	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(ctx, query, gen)
	})
}

// Close cancels any pending lookup and waits for an in-flight one to
// finish. The Searcher is unusable afterwards.
func (s *Searcher) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelPendingLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Searcher) cancelPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
}

func (s *Searcher) run(ctx context.Context, query string, gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	s.pending = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer cancel()

	products, err := s.resolver.Search(lookupCtx, query)

	// A keystroke may have arrived while the lookup was in flight, after
	// this generation's cancel func was registered but too late to stop
	// the work. The generation check keeps that stale result from landing
	// after the newer query's.
	s.mu.Lock()
	stale := s.closed || gen != s.gen || lookupCtx.Err() != nil
	s.mu.Unlock()
	if stale {
		return
	}
	s.deliver(SearchResult{Query: query, Products: products, Err: err})
}
