// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// maxIndexNameLen limita o nome composto do índice.
const maxIndexNameLen = 254

// IndexOptions controla a criação de índices.
type IndexOptions struct {
	Unique   bool
	DropDups bool
}

// indexName concatena "_" e o nome de cada campo da chave, truncado em
// maxIndexNameLen.
func indexName(key bsoncore.Document) (string, error) {
	elements, err := key.Elements()
	if err != nil {
		return "", fmt.Errorf("client: invalid index key: %w", err)
	}
	var sb strings.Builder
	sb.WriteByte('_')
	for _, el := range elements {
		if sb.Len() >= maxIndexNameLen {
			break
		}
		sb.WriteString(el.Key())
	}
	name := sb.String()
	if len(name) > maxIndexNameLen {
		name = name[:maxIndexNameLen]
	}
	return name, nil
}

// CreateIndex registra um índice inserindo o spec em <db>.system.indexes e
// retorna o veredito de getlasterror.
func (c *Connection) CreateIndex(ctx context.Context, ns string, key bsoncore.Document, opts IndexOptions) error {
	dot := strings.IndexByte(ns, '.')
	if dot <= 0 {
		return fmt.Errorf("%w: namespace %q", ErrBadArg, ns)
	}
	db := ns[:dot]

	name, err := indexName(key)
	if err != nil {
		return err
	}

	builder := bsoncore.NewDocumentBuilder().
		AppendDocument("key", key).
		AppendString("ns", ns).
		AppendString("name", name)
	if opts.Unique {
		builder.AppendBoolean("unique", true)
	}
	if opts.DropDups {
		builder.AppendBoolean("dropDups", true)
	}

	if err := c.Insert(ctx, db+".system.indexes", builder.Build()); err != nil {
		return err
	}
	_, err = c.GetLastError(ctx, db)
	return err
}

// CreateSimpleIndex cria um índice ascendente de campo único.
func (c *Connection) CreateSimpleIndex(ctx context.Context, ns, field string, opts IndexOptions) error {
	key := bsoncore.NewDocumentBuilder().AppendInt32(field, 1).Build()
	return c.CreateIndex(ctx, ns, key, opts)
}
