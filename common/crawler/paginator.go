package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/rs/zerolog/log"
)

// Paginator walks an infinite-scroll catalog pass by pass
type Paginator struct {
	extractor   *Extractor
	settleDelay time.Duration
}

func NewPaginator(extractor *Extractor, settleDelay time.Duration) *Paginator {
	return &Paginator{
		extractor:   extractor,
		settleDelay: settleDelay,
	}
}

// Paginate collects at most limit records from page. Each pass re-reads the
// document and keeps only the records at positions not seen before. It stops
// as soon as limit is reached or a pass brings nothing new.
func (p *Paginator) Paginate(ctx context.Context, page Page, limit int) ([]models.ProductRecord, error) {
	records, _, err := p.paginate(ctx, page, limit)
	return records, err
}

// paginate also returns the document read on the final pass
func (p *Paginator) paginate(ctx context.Context, page Page, limit int) ([]models.ProductRecord, string, error) {
	if limit <= 0 {
		return nil, "", ErrInvalidCap
	}

	records := make([]models.ProductRecord, 0, limit)
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		document, err := page.HTML(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("reading document on pass %d: %w", pass, err)
		}

		found, err := p.extractor.Extract(document)
		if err != nil {
			return nil, "", fmt.Errorf("extracting pass %d: %w", pass, err)
		}

		fresh := found[min(len(records), len(found)):]
		if len(fresh) == 0 {
			log.Debug().Int("pass", pass).Int("records", len(records)).Msg("No new catalog items, stopping")
			return records, document, nil
		}

		if room := limit - len(records); len(fresh) >= room {
			records = append(records, fresh[:room]...)
			log.Debug().Int("pass", pass).Int("records", len(records)).Msg("Record cap reached")
			return records, document, nil
		}
		records = append(records, fresh...)

		log.Debug().Int("pass", pass).Int("new", len(fresh)).Int("records", len(records)).Msg("Loading more catalog items")

		if err := page.ScrollToBottom(ctx); err != nil {
			return nil, "", fmt.Errorf("scrolling after pass %d: %w", pass, err)
		}

		if err := sleep(ctx, p.settleDelay); err != nil {
			return nil, "", err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
