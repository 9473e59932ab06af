package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceSource(items []int) PageFunc[int] {
	return func(_ context.Context, skip, first int) ([]int, error) {
		if skip >= len(items) {
			return nil, nil
		}
		end := skip + first
		if end > len(items) {
			end = len(items)
		}
		return items[skip:end], nil
	}
}

func TestPaginateStopsOnShortPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var got []int

	pages, err := Paginate(context.Background(), Pager{PageSize: 2}, sliceSource(items), func(page []int) error {
		got = append(got, page...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, items, got)
}

func TestPaginateExactMultipleFetchesEmptyTail(t *testing.T) {
	items := []int{1, 2, 3, 4}
	visits := 0

	pages, err := Paginate(context.Background(), Pager{PageSize: 2}, sliceSource(items), func(page []int) error {
		visits++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 2, visits)
}

func TestPaginateRetriesThenSucceeds(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, skip, first int) ([]int, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("temporary")
		}
		return []int{1}, nil
	}

	p := Pager{PageSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond}
	pages, err := Paginate(context.Background(), p, fetch, func([]int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Equal(t, 3, calls)
}

func TestPaginateAbortsAfterRetries(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, skip, first int) ([]int, error) {
		calls++
		if skip == 0 {
			return []int{1, 2}, nil
		}
		return nil, errors.New("upstream down")
	}

	var got []int
	p := Pager{PageSize: 2, MaxRetries: 1, RetryBackoff: time.Millisecond}
	pages, err := Paginate(context.Background(), p, fetch, func(page []int) error {
		got = append(got, page...)
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	assert.Equal(t, 1, pages)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 3, calls)
}

func TestPaginatePageLimit(t *testing.T) {
	full := func(_ context.Context, skip, first int) ([]int, error) {
		return make([]int, first), nil
	}

	_, err := Paginate(context.Background(), Pager{PageSize: 1, MaxPages: 2}, full, func([]int) error { return nil })
	require.ErrorIs(t, err, ErrPageLimit)
}

func TestPaginatePageTimeout(t *testing.T) {
	slow := func(ctx context.Context, skip, first int) ([]int, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p := Pager{PageSize: 1, PageTimeout: 5 * time.Millisecond}
	_, err := Paginate(context.Background(), p, slow, func([]int) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPaginateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Paginate(ctx, Pager{PageSize: 1}, sliceSource([]int{1}), func([]int) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
