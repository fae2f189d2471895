package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
)

const countAlias = "records"

var errEmptyID = errors.New("firestore: document id is required")

// Document is a decoded snapshot together with its server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder narrows a collection query.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection is a typed view over one Firestore collection. T is decoded with the firestore
// struct tags. Every call joins the transaction attached to ctx by UnitOfWork.RunInTx.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds T to the named collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: name}
}

// Create writes id and fails with AlreadyExists when it is taken.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	return c.write(ctx, "create", id, func(tx *firestore.Transaction, doc *firestore.DocumentRef) error {
		if tx != nil {
			return tx.Create(doc, value)
		}
		_, err := doc.Create(ctx, value)
		return err
	})
}

// Set replaces id.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	return c.write(ctx, "set", id, func(tx *firestore.Transaction, doc *firestore.DocumentRef) error {
		if tx != nil {
			return tx.Set(doc, value)
		}
		_, err := doc.Set(ctx, value)
		return err
	})
}

// Update patches fields of an existing document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	return c.write(ctx, "update", id, func(tx *firestore.Transaction, doc *firestore.DocumentRef) error {
		if tx != nil {
			return tx.Update(doc, updates)
		}
		_, err := doc.Update(ctx, updates)
		return err
	})
}

// Delete removes an existing document; a missing one reports NotFound.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.write(ctx, "delete", id, func(tx *firestore.Transaction, doc *firestore.DocumentRef) error {
		if tx != nil {
			return tx.Delete(doc, firestore.Exists)
		}
		_, err := doc.Delete(ctx, firestore.Exists)
		return err
	})
}

// Get loads and decodes id.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := c.doc(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	var snap *firestore.DocumentSnapshot
	if tx, ok := TransactionFromContext(ctx); ok {
		snap, err = tx.Get(doc)
	} else {
		snap, err = doc.Get(ctx)
	}
	if err != nil {
		return Document[T]{}, WrapError(c.name+".get", err)
	}
	return decode[T](snap)
}

// Query runs build against the collection and decodes every match.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	query, err := c.query(ctx, build)
	if err != nil {
		return nil, err
	}
	var iter *firestore.DocumentIterator
	if tx, ok := TransactionFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(c.name+".query", err)
		}
		doc, err := decode[T](snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// Count aggregates the matches server side. Aggregations never join a transaction.
func (c *Collection[T]) Count(ctx context.Context, build QueryBuilder) (int, error) {
	query, err := c.query(ctx, build)
	if err != nil {
		return 0, err
	}
	result, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, WrapError(c.name+".count", err)
	}
	value, ok := result[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("firestore %s.count: unexpected result %T", c.name, result[countAlias])
	}
	return int(value.GetIntegerValue()), nil
}

func (c *Collection[T]) write(ctx context.Context, op, id string, apply func(*firestore.Transaction, *firestore.DocumentRef) error) error {
	doc, err := c.doc(ctx, id)
	if err != nil {
		return err
	}
	tx, _ := TransactionFromContext(ctx)
	return WrapError(c.name+"."+op, apply(tx, doc))
}

func (c *Collection[T]) doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errEmptyID
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

func (c *Collection[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}
	return query, nil
}

func decode[T any](snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data, CreateTime: snap.CreateTime, UpdateTime: snap.UpdateTime}, nil
}
