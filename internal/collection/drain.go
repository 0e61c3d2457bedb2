package collection

import "context"

// Drain walks every page of fetch until an empty or short page and returns
// all items. The offset advances by what each page actually returned.
func Drain[T any](ctx context.Context, fetch PageFunc[T], pageSize int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultLimit
	}
	all := []T{}
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(page) < pageSize {
			return all, nil
		}
		offset += len(page)
	}
}
