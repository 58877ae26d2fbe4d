package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrScrapeInProgress = errors.New("scrape already in progress")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

// FetchError wraps errors that occur while fetching an HTML page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// UpstreamError is returned when the WordPress API is unreachable or
// answers with a non-2xx status.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error for %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError wraps failures of the news store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ScrapeSourceError is returned when one configured source fails as a whole.
type ScrapeSourceError struct {
	Source string
	URL    string
	Err    error
}

func (e *ScrapeSourceError) Error() string {
	return fmt.Sprintf("scrape error for source %q (%s): %v", e.Source, e.URL, e.Err)
}

func (e *ScrapeSourceError) Unwrap() error { return e.Err }

// ScrapeParseError is returned when a single DOM fragment cannot be turned
// into an item.
type ScrapeParseError struct {
	Source   string
	Selector string
	Err      error
}

func (e *ScrapeParseError) Error() string {
	return fmt.Sprintf("parse error for source %q (selector=%q): %v", e.Source, e.Selector, e.Err)
}

func (e *ScrapeParseError) Unwrap() error { return e.Err }

// ValidationError lists the required fields a document is missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PipelineError is returned when an item cleanup stage fails.
type PipelineError struct {
	Stage string
	Link  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.Link, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
