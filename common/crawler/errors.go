package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrScrapeFailed matches every error returned by Scraper.Scrape
	ErrScrapeFailed = errors.New("scrape failed")

	// ErrRenderTimeout is returned when no catalog item rendered within the bound
	ErrRenderTimeout = errors.New("catalog did not render in time")

	// ErrExtractionMalformed marks an item node without the mandatory name
	ErrExtractionMalformed = errors.New("catalog item is missing its name")

	// ErrInvalidCap is returned for a non-positive record cap
	ErrInvalidCap = errors.New("record cap must be positive")
)

// ScrapeError carries the underlying cause of a failed scrape
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

func (e *ScrapeError) Is(target error) bool {
	return target == ErrScrapeFailed
}
