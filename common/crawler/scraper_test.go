package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScraperConfig() ScraperConfig {
	return ScraperConfig{
		Selectors:     DefaultSelectors(),
		RenderTimeout: 100 * time.Millisecond,
	}
}

func TestScrapeReturnsCappedRecordsAndClosesPage(t *testing.T) {
	renderer := &fakeRenderer{page: newFakePage(200, 30)}
	scraper := NewScraper(renderer, testScraperConfig())

	records, err := scraper.Scrape(context.Background(), "https://example.test/games", 50)
	require.NoError(t, err)

	assert.Len(t, records, 50)
	assert.Equal(t, "https://example.test/games", renderer.lastURL)
	assert.Equal(t, 1, renderer.page.closed)
}

func TestScrapeDefaultsCap(t *testing.T) {
	renderer := &fakeRenderer{page: newFakePage(200, 30)}

	result, err := NewScraper(renderer, testScraperConfig()).ScrapePage(context.Background(), "https://example.test", 0)
	require.NoError(t, err)
	assert.Len(t, result.Records, DefaultCap)
	assert.Contains(t, result.Snapshot, "catalog-item")
}

func TestScrapeRenderTimeoutIsDistinctFromEmptyCatalog(t *testing.T) {
	page := newFakePage(0, 10)
	page.waitErr = ErrRenderTimeout
	scraper := NewScraper(&fakeRenderer{page: page}, testScraperConfig())

	records, err := scraper.Scrape(context.Background(), "https://example.test", 50)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, ErrRenderTimeout)
	assert.Equal(t, 1, page.closed)

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, "https://example.test", scrapeErr.URL)
}

func TestScrapeSessionAcquisitionIsBounded(t *testing.T) {
	scraper := NewScraper(&fakeRenderer{block: true}, testScraperConfig())

	_, err := scraper.Scrape(context.Background(), "https://example.test", 50)
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, ErrRenderTimeout)
}

func TestScrapeRenderFailure(t *testing.T) {
	scraper := NewScraper(&fakeRenderer{err: errBoom}, testScraperConfig())

	_, err := scraper.Scrape(context.Background(), "https://example.test", 50)
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, errBoom)
}

func TestScrapePaginationFailureReturnsNoPartialResult(t *testing.T) {
	page := newFakePage(100, 10)
	page.scrollErr = errBoom
	scraper := NewScraper(&fakeRenderer{page: page}, testScraperConfig())

	records, err := scraper.Scrape(context.Background(), "https://example.test", 50)
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, records)
	assert.Equal(t, 1, page.closed)
}
