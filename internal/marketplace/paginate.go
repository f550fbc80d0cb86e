package marketplace

import "context"

const defaultPageSize = 100

// fetchPageFunc returns one page at the given offset plus the server-side
// total count known at fetch time.
type fetchPageFunc[T any] func(ctx context.Context, offset, limit int) (items []T, total int, err error)

// fetchAll выкачивает коллекцию постранично: offset 0, 100, 200, ...
// total_count берётся с ПЕРВОЙ страницы и дальше не перечитывается, поэтому
// при конкурентных изменениях на сервере возможны дубли/пропуски — это
// осознанное ограничение, а не баг.
func fetchAll[T any](ctx context.Context, pageSize int, fetch fetchPageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	items, total, err := fetch(ctx, 0, pageSize)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, total)
	out = append(out, items...)

	for offset := pageSize; offset < total; offset += pageSize {
		page, _, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
	}

	return out, nil
}
