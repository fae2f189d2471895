package firestore

import (
	"context"
	"math"

	"cloud.google.com/go/firestore"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
)

// listPage runs the filtered query ordered by creation time and a count aggregation over the same filter.
func listPage[D any, T any](ctx context.Context, base *pfirestore.Collection[D], filter pfirestore.QueryBuilder, page domain.PageRequest, convert func(id string, doc D) (T, error)) (domain.Page[T], error) {
	// Firestore offsets are int32. Anything past that is beyond the last record.
	if page.Offset() > math.MaxInt32 {
		total, err := base.Count(ctx, filter)
		if err != nil {
			return domain.Page[T]{}, err
		}
		return domain.NewPage[T](nil, total, page), nil
	}
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = filter(q).OrderBy("createdAt", firestore.Asc).Offset(page.Offset())
		if page.Limit > 0 {
			q = q.Limit(page.Limit)
		}
		return q
	})
	if err != nil {
		return domain.Page[T]{}, err
	}
	total, err := base.Count(ctx, filter)
	if err != nil {
		return domain.Page[T]{}, err
	}
	data, err := convertAll(docs, convert)
	if err != nil {
		return domain.Page[T]{}, err
	}
	return domain.NewPage(data, total, page), nil
}

func listAll[D any, T any](ctx context.Context, base *pfirestore.Collection[D], filter pfirestore.QueryBuilder, convert func(id string, doc D) (T, error)) ([]T, error) {
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return filter(q).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	return convertAll(docs, convert)
}

func convertAll[D any, T any](docs []pfirestore.Document[D], convert func(id string, doc D) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		value, err := convert(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func infallible[D any, T any](fn func(doc D, id string) T) func(string, D) (T, error) {
	return func(id string, doc D) (T, error) {
		return fn(doc, id), nil
	}
}

func fallible[D any, T any](fn func(doc D, id string) (T, error)) func(string, D) (T, error) {
	return func(id string, doc D) (T, error) {
		return fn(doc, id)
	}
}
