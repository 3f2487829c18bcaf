// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// fakeConn é um backend em memória implementando o contrato Conn do store,
// com semântica suficiente das queries usadas: igualdade de campos, unwrap
// de {query, orderby}, n:{$gte} e ordenação por n/uploadDate. Registra
// contadores por operação e namespace para asserções.
type fakeConn struct {
	mu          sync.Mutex
	collections map[string][]bsoncore.Document
	counts      map[string]int
	indexes     []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		collections: make(map[string][]bsoncore.Document),
		counts:      make(map[string]int),
	}
}

func (f *fakeConn) bump(op, ns string) {
	f.counts[op+":"+ns]++
}

// Count retorna o contador de uma operação ("insert", "upsert", "remove")
// em um namespace.
func (f *fakeConn) Count(op, ns string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op+":"+ns]
}

// ResetCounts zera os contadores de operação.
func (f *fakeConn) ResetCounts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[string]int)
}

// Docs retorna uma cópia dos documentos de um namespace.
func (f *fakeConn) Docs(ns string) []bsoncore.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bsoncore.Document, len(f.collections[ns]))
	copy(out, f.collections[ns])
	return out
}

// unwrapQuery separa {query, orderby} quando a consulta vem embrulhada.
func unwrapQuery(query bsoncore.Document) (inner, orderby bsoncore.Document) {
	if val, err := query.LookupErr("query"); err == nil {
		if doc, ok := val.DocumentOK(); ok {
			inner = doc
			if oval, oerr := query.LookupErr("orderby"); oerr == nil {
				orderby, _ = oval.DocumentOK()
			}
			return inner, orderby
		}
	}
	return query, nil
}

// matches avalia a query suportada contra um documento.
func matches(doc, query bsoncore.Document) bool {
	elems, err := query.Elements()
	if err != nil {
		return false
	}
	for _, el := range elems {
		qv := el.Value()
		dv, derr := doc.LookupErr(el.Key())

		if sub, ok := qv.DocumentOK(); ok {
			if gte, gerr := sub.LookupErr("$gte"); gerr == nil {
				if derr != nil {
					return false
				}
				dn, _ := dv.AsInt64OK()
				qn, _ := gte.AsInt64OK()
				if dn < qn {
					return false
				}
				continue
			}
		}
		if derr != nil || !dv.Equal(qv) {
			return false
		}
	}
	return true
}

// sortDocs aplica o orderby suportado (um campo, 1 ou -1).
func sortDocs(docs []bsoncore.Document, orderby bsoncore.Document) {
	if orderby == nil {
		return
	}
	elems, err := orderby.Elements()
	if err != nil || len(elems) == 0 {
		return
	}
	key := elems[0].Key()
	dir, _ := elems[0].Value().AsInt64OK()
	num := func(v bsoncore.Value) int64 {
		if ms, ok := v.DateTimeOK(); ok {
			return ms
		}
		n, _ := v.AsInt64OK()
		return n
	}
	sort.SliceStable(docs, func(i, j int) bool {
		vi, _ := docs[i].LookupErr(key)
		vj, _ := docs[j].LookupErr(key)
		if dir < 0 {
			return num(vi) > num(vj)
		}
		return num(vi) < num(vj)
	})
}

func (f *fakeConn) selectDocs(ns string, query bsoncore.Document, limit int32) []bsoncore.Document {
	inner, orderby := unwrapQuery(query)
	var out []bsoncore.Document
	for _, doc := range f.collections[ns] {
		if len(inner) == 0 || matches(doc, inner) {
			out = append(out, doc)
		}
	}
	sortDocs(out, orderby)
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out
}

func (f *fakeConn) Insert(_ context.Context, ns string, docs ...bsoncore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("insert", ns)
	f.collections[ns] = append(f.collections[ns], docs...)
	return nil
}

func (f *fakeConn) Upsert(_ context.Context, ns string, selector, update bsoncore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("upsert", ns)
	for i, doc := range f.collections[ns] {
		if matches(doc, selector) {
			f.collections[ns][i] = update
			return nil
		}
	}
	f.collections[ns] = append(f.collections[ns], update)
	return nil
}

func (f *fakeConn) Remove(_ context.Context, ns string, selector bsoncore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("remove", ns)
	kept := f.collections[ns][:0]
	for _, doc := range f.collections[ns] {
		if !matches(doc, selector) {
			kept = append(kept, doc)
		}
	}
	f.collections[ns] = kept
	return nil
}

func (f *fakeConn) FindOne(_ context.Context, ns string, query, _ bsoncore.Document) (bsoncore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := f.selectDocs(ns, query, 1)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, ns)
	}
	return docs[0], nil
}

func (f *fakeConn) Find(_ context.Context, ns string, query, _ bsoncore.Document, nToReturn, _ int32) (Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fakeCursor{docs: f.selectDocs(ns, query, nToReturn)}, nil
}

func (f *fakeConn) RunCommand(_ context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error) {
	if val, err := cmd.LookupErr("filemd5"); err == nil {
		id, _ := val.ObjectIDOK()
		prefix, _ := cmd.LookupErr("root")
		root, _ := prefix.StringValueOK()
		sum := f.fileMD5(db+"."+root+".chunks", id)
		return bsoncore.NewDocumentBuilder().
			AppendString("md5", sum).
			AppendDouble("ok", 1).
			Build(), nil
	}
	return bsoncore.NewDocumentBuilder().AppendDouble("ok", 1).Build(), nil
}

// fileMD5 reproduz o comando server-side: md5 dos bytes armazenados dos
// chunks de um arquivo, em ordem de n.
func (f *fakeConn) fileMD5(chunksNS string, id primitive.ObjectID) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	selector := bsoncore.NewDocumentBuilder().AppendObjectID("files_id", id).Build()
	var chunks []bsoncore.Document
	for _, doc := range f.collections[chunksNS] {
		if matches(doc, selector) {
			chunks = append(chunks, doc)
		}
	}
	sortDocs(chunks, bsoncore.NewDocumentBuilder().AppendInt32("n", 1).Build())

	h := md5.New()
	for _, doc := range chunks {
		if val, err := doc.LookupErr("data"); err == nil {
			if _, data, ok := val.BinaryOK(); ok {
				h.Write(data)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (f *fakeConn) EnsureIndex(_ context.Context, ns string, _ bsoncore.Document, unique bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes = append(f.indexes, fmt.Sprintf("%s unique=%v", ns, unique))
	return nil
}

// fakeCursor itera um slice de documentos.
type fakeCursor struct {
	docs []bsoncore.Document
	i    int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.i >= len(c.docs) {
		return false
	}
	c.i++
	return true
}

func (c *fakeCursor) Current() bsoncore.Document {
	return c.docs[c.i-1]
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Close(context.Context) error { return nil }
