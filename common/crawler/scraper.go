package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/rs/zerolog/log"
)

// DefaultCap is the number of records one scrape collects unless told otherwise
const DefaultCap = 50

// ScraperConfig bounds one scrape
type ScraperConfig struct {
	Selectors     Selectors
	RenderTimeout time.Duration
	SettleDelay   time.Duration
}

// Result is the outcome of one successful scrape
type Result struct {
	Records []models.ProductRecord
	// Snapshot is the document read on the last pagination pass
	Snapshot string
}

// Scraper renders a catalog URL and paginates it into records
type Scraper struct {
	renderer  Renderer
	paginator *Paginator
	config    ScraperConfig
}

func NewScraper(renderer Renderer, config ScraperConfig) *Scraper {
	return &Scraper{
		renderer:  renderer,
		paginator: NewPaginator(NewExtractor(config.Selectors), config.SettleDelay),
		config:    config,
	}
}

// Scrape returns up to limit records from url in page order
func (s *Scraper) Scrape(ctx context.Context, url string, limit int) ([]models.ProductRecord, error) {
	result, err := s.ScrapePage(ctx, url, limit)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// ScrapePage is Scrape that also keeps the final rendered document.
// The page is closed on every path; failures come back as *ScrapeError.
func (s *Scraper) ScrapePage(ctx context.Context, url string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultCap
	}
	start := time.Now()

	renderCtx, cancel := context.WithTimeout(ctx, s.config.RenderTimeout)
	page, err := s.renderer.Render(renderCtx, url)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: opening page: %v", ErrRenderTimeout, err)
		}
		return Result{}, &ScrapeError{URL: url, Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to close page")
		}
	}()

	if err := page.WaitFor(ctx, s.config.Selectors.Item, s.config.RenderTimeout); err != nil {
		return Result{}, &ScrapeError{URL: url, Err: err}
	}

	records, snapshot, err := s.paginator.paginate(ctx, page, limit)
	if err != nil {
		return Result{}, &ScrapeError{URL: url, Err: err}
	}

	log.Info().
		Str("url", url).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Catalog scraped")

	return Result{Records: records, Snapshot: snapshot}, nil
}
