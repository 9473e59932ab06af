package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poolDesk/internal/metrics"
)

// ErrPageLimit is returned when pagination reaches MaxPages without a short page.
var ErrPageLimit = errors.New("page limit reached")

// PageFunc fetches one page starting at skip with at most first records.
type PageFunc[T any] func(ctx context.Context, skip, first int) ([]T, error)

// Pager walks a skip-paginated source sequentially until a page is shorter than PageSize.
type Pager struct {
	Source       string
	PageSize     int
	MaxPages     int
	PageTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

func (p Pager) withDefaults() Pager {
	if p.PageSize <= 0 {
		p.PageSize = 1000
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Source == "" {
		p.Source = "upstream"
	}
	return p
}

// Paginate fetches pages in order and hands each non-empty page to visit.
// It returns the number of pages fetched. Any page failure, after retries, aborts the walk.
func Paginate[T any](ctx context.Context, p Pager, fetch PageFunc[T], visit func(page []T) error) (int, error) {
	p = p.withDefaults()

	pages := 0
	for skip := 0; ; skip += p.PageSize {
		if p.MaxPages > 0 && pages >= p.MaxPages {
			return pages, fmt.Errorf("%w: %d pages of %d", ErrPageLimit, pages, p.PageSize)
		}
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		var page []T
		err := withRetry(ctx, p.MaxRetries, p.RetryBackoff, func(ctx context.Context) error {
			pageCtx, cancel := p.pageContext(ctx)
			defer cancel()

			var err error
			page, err = fetch(pageCtx, skip, p.PageSize)
			if err != nil {
				p.Metrics.FetchFailed(p.Source)
				p.Logger.Warn("fetch page failed", zap.Error(err), zap.String("source", p.Source), zap.Int("skip", skip))
			}
			return err
		})
		if err != nil {
			return pages, fmt.Errorf("fetch %s page skip=%d: %w", p.Source, skip, err)
		}

		pages++
		p.Metrics.PageFetched(p.Source)
		p.Logger.Debug("page fetched", zap.String("source", p.Source), zap.Int("skip", skip), zap.Int("records", len(page)))

		if len(page) > 0 {
			if err := visit(page); err != nil {
				return pages, err
			}
		}
		if len(page) < p.PageSize {
			return pages, nil
		}
	}
}

func (p Pager) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.PageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.PageTimeout)
}
