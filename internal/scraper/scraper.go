package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/tweedhat/api/internal/model"
)

// Credentials are optional login details for the primary site.
type Credentials struct {
	Email    string
	Password string
}

// Scraper fetches a bounded number of posts for a handle.
type Scraper interface {
	Scrape(ctx context.Context, handle string, maxPosts int, creds *Credentials) ([]model.Post, error)
}

// Strategy is one way of fetching a profile's posts. Strategies hold no
// cross-call state; each Fetch is independent.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, handle string, maxPosts int, creds *Credentials) ([]model.Post, error)
}

// ErrBlocked is returned by a strategy that reached the site but was
// served a block or challenge page instead of the timeline.
var ErrBlocked = errors.New("blocked by target site")

// ScrapeError means every strategy in the chain was exhausted.
type ScrapeError struct {
	Handle   string
	Attempts []error
}

func (e *ScrapeError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all scrape strategies failed for @%s: %s", e.Handle, strings.Join(msgs, "; "))
}

// Chain runs an ordered list of strategies until one yields a usable
// result. Each strategy gets a bounded number of attempts with small
// randomized delays between them to reduce detection-driven failures.
type Chain struct {
	strategies []Strategy
	retries    int
	retryDelay time.Duration
}

// NewChain builds a chain over the given strategies. retries is the
// attempt count per strategy (minimum 1).
func NewChain(retries int, retryDelay time.Duration, strategies ...Strategy) *Chain {
	if retries < 1 {
		retries = 1
	}
	return &Chain{strategies: strategies, retries: retries, retryDelay: retryDelay}
}

// Scrape tries each strategy in order. A strategy error or empty result
// falls through to the next strategy; an empty result from a strategy
// that succeeded is only returned once the whole chain has been tried,
// since a later strategy may still find posts. Zero posts overall is not
// an error as long as at least one strategy completed cleanly.
func (c *Chain) Scrape(ctx context.Context, handle string, maxPosts int, creds *Credentials) ([]model.Post, error) {
	var attempts []error
	sawEmpty := false

	for _, strat := range c.strategies {
		for attempt := 1; attempt <= c.retries; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			posts, err := strat.Fetch(ctx, handle, maxPosts, creds)
			if err != nil {
				log.Printf("Scrape @%s: %s attempt %d/%d failed: %v", handle, strat.Name(), attempt, c.retries, err)
				attempts = append(attempts, fmt.Errorf("%s: %w", strat.Name(), err))
				c.backoff(ctx)
				continue
			}
			if len(posts) == 0 {
				log.Printf("Scrape @%s: %s returned no posts", handle, strat.Name())
				sawEmpty = true
				break // an empty timeline will stay empty; try the next strategy
			}
			if len(posts) > maxPosts {
				posts = posts[:maxPosts]
			}
			log.Printf("Scrape @%s: %s returned %d posts", handle, strat.Name(), len(posts))
			return posts, nil
		}
	}

	if sawEmpty {
		return nil, nil
	}
	return nil, &ScrapeError{Handle: handle, Attempts: attempts}
}

// backoff sleeps for the configured delay plus up to the same again of
// jitter, or until the context is done.
func (c *Chain) backoff(ctx context.Context) {
	if c.retryDelay <= 0 {
		return
	}
	delay := c.retryDelay + time.Duration(rand.Int63n(int64(c.retryDelay)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
