// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/nishisan-dev/n-docstore/internal/client"
	"github.com/nishisan-dev/n-docstore/internal/wire"
)

// connAdapter liga o contrato Conn do store a uma client.Connection.
type connAdapter struct {
	c *client.Connection
}

// Wrap adapta uma conexão síncrona ao contrato do store.
func Wrap(c *client.Connection) Conn {
	return connAdapter{c: c}
}

func (a connAdapter) Insert(ctx context.Context, ns string, docs ...bsoncore.Document) error {
	return a.c.Insert(ctx, ns, docs...)
}

func (a connAdapter) Upsert(ctx context.Context, ns string, selector, update bsoncore.Document) error {
	return a.c.Update(ctx, ns, selector, update, wire.UpdateUpsert)
}

func (a connAdapter) Remove(ctx context.Context, ns string, selector bsoncore.Document) error {
	return a.c.Remove(ctx, ns, selector)
}

func (a connAdapter) FindOne(ctx context.Context, ns string, query, fields bsoncore.Document) (bsoncore.Document, error) {
	doc, err := a.c.FindOne(ctx, ns, query, fields)
	if errors.Is(err, client.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, ns)
	}
	return doc, err
}

func (a connAdapter) Find(ctx context.Context, ns string, query, fields bsoncore.Document, nToReturn, nToSkip int32) (Cursor, error) {
	return a.c.Find(ctx, ns, query, fields, nToReturn, nToSkip, 0)
}

func (a connAdapter) RunCommand(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error) {
	return a.c.RunCommand(ctx, db, cmd)
}

func (a connAdapter) EnsureIndex(ctx context.Context, ns string, key bsoncore.Document, unique bool) error {
	return a.c.CreateIndex(ctx, ns, key, client.IndexOptions{Unique: unique})
}
