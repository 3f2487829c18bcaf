// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// EncodeInsert monta um OP_INSERT com um ou mais documentos concatenados.
// Formato do corpo: [flags int32] [ns cstring] [doc]...
func EncodeInsert(requestID int32, ns string, flags int32, docs ...bsoncore.Document) *Message {
	total := HeaderSize + 4 + len(ns) + 1
	for _, doc := range docs {
		total += len(doc)
	}
	m := NewMessage(int32(total), requestID, 0, OpInsert)
	m.AppendInt32(flags)
	m.AppendCString(ns)
	for _, doc := range docs {
		m.AppendDocument(doc)
	}
	return m
}

// EncodeUpdate monta um OP_UPDATE.
// Formato do corpo: [0 int32] [ns cstring] [flags int32] [selector] [update]
func EncodeUpdate(requestID int32, ns string, flags int32, selector, update bsoncore.Document) *Message {
	total := HeaderSize + 4 + len(ns) + 1 + 4 + len(selector) + len(update)
	m := NewMessage(int32(total), requestID, 0, OpUpdate)
	m.AppendInt32(0)
	m.AppendCString(ns)
	m.AppendInt32(flags)
	m.AppendDocument(selector)
	m.AppendDocument(update)
	return m
}

// EncodeDelete monta um OP_DELETE.
// Formato do corpo: [0 int32] [ns cstring] [0 int32] [selector]
func EncodeDelete(requestID int32, ns string, selector bsoncore.Document) *Message {
	total := HeaderSize + 4 + len(ns) + 1 + 4 + len(selector)
	m := NewMessage(int32(total), requestID, 0, OpDelete)
	m.AppendInt32(0)
	m.AppendCString(ns)
	m.AppendInt32(0)
	m.AppendDocument(selector)
	return m
}

// EncodeQuery monta um OP_QUERY. fields é opcional (nil omite a projeção).
// Formato do corpo: [flags int32] [ns cstring] [nToSkip int32]
// [nToReturn int32] [query] [fields?]
func EncodeQuery(requestID int32, ns string, flags, nToSkip, nToReturn int32, query, fields bsoncore.Document) *Message {
	total := HeaderSize + 4 + len(ns) + 1 + 4 + 4 + len(query) + len(fields)
	m := NewMessage(int32(total), requestID, 0, OpQuery)
	m.AppendInt32(flags)
	m.AppendCString(ns)
	m.AppendInt32(nToSkip)
	m.AppendInt32(nToReturn)
	m.AppendDocument(query)
	if len(fields) > 0 {
		m.AppendDocument(fields)
	}
	return m
}

// EncodeGetMore monta um OP_GET_MORE para refill de cursor.
// Formato do corpo: [0 int32] [ns cstring] [nToReturn int32] [cursorID int64]
func EncodeGetMore(requestID int32, ns string, nToReturn int32, cursorID int64) *Message {
	total := HeaderSize + 4 + len(ns) + 1 + 4 + 8
	m := NewMessage(int32(total), requestID, 0, OpGetMore)
	m.AppendInt32(0)
	m.AppendCString(ns)
	m.AppendInt32(nToReturn)
	m.AppendInt64(cursorID)
	return m
}

// EncodeKillCursors monta um OP_KILL_CURSORS para um ou mais cursor ids.
// Formato do corpo: [0 int32] [numCursors int32] [cursorID int64]...
func EncodeKillCursors(requestID int32, cursorIDs ...int64) *Message {
	total := HeaderSize + 4 + 4 + 8*len(cursorIDs)
	m := NewMessage(int32(total), requestID, 0, OpKillCursors)
	m.AppendInt32(0)
	m.AppendInt32(int32(len(cursorIDs)))
	for _, id := range cursorIDs {
		m.AppendInt64(id)
	}
	return m
}
