// Package pipeline cleans scraped items before they reach the store.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/newsblend/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.ScrapedItem) (*types.ScrapedItem, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the item through all middleware in order.
func (p *Pipeline) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Link:  current.Link,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "link", item.Link)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Run processes a batch and returns the surviving items in order. Items
// whose processing fails are logged and dropped.
func (p *Pipeline) Run(items []types.ScrapedItem) []types.ScrapedItem {
	out := make([]types.ScrapedItem, 0, len(items))
	for i := range items {
		item := items[i]
		result, err := p.Process(&item)
		if err != nil {
			p.logger.Warn("item processing failed", "error", err)
			continue
		}
		if result != nil {
			out = append(out, *result)
		}
	}
	return out
}
