// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

func testDoc(t *testing.T, key string, value int32) bsoncore.Document {
	t.Helper()
	return bsoncore.NewDocumentBuilder().AppendInt32(key, value).Build()
}

func TestMessage_HeaderLayout(t *testing.T) {
	m := NewMessage(HeaderSize, 7, 9, OpQuery)
	raw := m.Finish()

	if len(raw) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(raw))
	}
	if got := int32(binary.LittleEndian.Uint32(raw[0:4])); got != HeaderSize {
		t.Errorf("expected length %d, got %d", HeaderSize, got)
	}
	if got := int32(binary.LittleEndian.Uint32(raw[4:8])); got != 7 {
		t.Errorf("expected request id 7, got %d", got)
	}
	if got := int32(binary.LittleEndian.Uint32(raw[8:12])); got != 9 {
		t.Errorf("expected response to 9, got %d", got)
	}
	if got := OpCode(binary.LittleEndian.Uint32(raw[12:16])); got != OpQuery {
		t.Errorf("expected op code %d, got %d", OpQuery, got)
	}
}

func TestMessage_RandomRequestID(t *testing.T) {
	m := NewMessage(HeaderSize, 0, 0, OpInsert)
	if m.RequestID() == 0 {
		t.Error("expected a non-zero generated request id")
	}
}

func TestMessage_SizeMismatchPanics(t *testing.T) {
	t.Run("underfill", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic on underfilled message")
			}
		}()
		m := NewMessage(HeaderSize+4, 1, 0, OpInsert)
		m.Finish()
	})

	t.Run("overflow", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic on overflowing append")
			}
		}()
		m := NewMessage(HeaderSize, 1, 0, OpInsert)
		m.AppendInt32(1)
	})
}

func TestEncodeInsert_Layout(t *testing.T) {
	doc := testDoc(t, "a", 1)
	raw := EncodeInsert(3, "db.coll", 0, doc).Finish()

	wantLen := HeaderSize + 4 + len("db.coll") + 1 + len(doc)
	if len(raw) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(raw))
	}
	if got := int32(binary.LittleEndian.Uint32(raw[16:20])); got != 0 {
		t.Errorf("expected zero flags, got %d", got)
	}
	nsEnd := 20 + len("db.coll")
	if string(raw[20:nsEnd]) != "db.coll" || raw[nsEnd] != 0 {
		t.Errorf("namespace not NUL-terminated at expected offset: %q", raw[20:nsEnd+1])
	}
	if !bytes.Equal(raw[nsEnd+1:], doc) {
		t.Error("document bytes not appended verbatim")
	}
}

func TestEncodeInsert_Batch(t *testing.T) {
	d1 := testDoc(t, "a", 1)
	d2 := testDoc(t, "b", 2)
	raw := EncodeInsert(1, "db.c", InsertContinueOnError, d1, d2).Finish()

	if got := int32(binary.LittleEndian.Uint32(raw[16:20])); got != InsertContinueOnError {
		t.Errorf("expected continue-on-error flag, got %d", got)
	}
	body := raw[16+4+len("db.c")+1:]
	if !bytes.Equal(body, append(append([]byte{}, d1...), d2...)) {
		t.Error("batch documents not concatenated in order")
	}
}

func TestEncodeUpdate_Layout(t *testing.T) {
	sel := testDoc(t, "q", 1)
	upd := testDoc(t, "u", 2)
	raw := EncodeUpdate(1, "db.c", UpdateUpsert, sel, upd).Finish()

	wantLen := HeaderSize + 4 + len("db.c") + 1 + 4 + len(sel) + len(upd)
	if len(raw) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(raw))
	}
	flagsOff := 16 + 4 + len("db.c") + 1
	if got := int32(binary.LittleEndian.Uint32(raw[flagsOff:])); got != UpdateUpsert {
		t.Errorf("expected upsert flag, got %d", got)
	}
}

func TestEncodeQuery_Layout(t *testing.T) {
	query := testDoc(t, "q", 1)
	fields := testDoc(t, "f", 1)

	tests := []struct {
		name   string
		fields bsoncore.Document
	}{
		{"with projection", fields},
		{"without projection", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := EncodeQuery(1, "db.c", QuerySlaveOK, 5, 10, query, tt.fields).Finish()

			wantLen := HeaderSize + 4 + len("db.c") + 1 + 4 + 4 + len(query) + len(tt.fields)
			if len(raw) != wantLen {
				t.Fatalf("expected %d bytes, got %d", wantLen, len(raw))
			}
			if got := int32(binary.LittleEndian.Uint32(raw[16:20])); got != QuerySlaveOK {
				t.Errorf("expected flags %d, got %d", QuerySlaveOK, got)
			}
			skipOff := 16 + 4 + len("db.c") + 1
			if got := int32(binary.LittleEndian.Uint32(raw[skipOff:])); got != 5 {
				t.Errorf("expected skip 5, got %d", got)
			}
			if got := int32(binary.LittleEndian.Uint32(raw[skipOff+4:])); got != 10 {
				t.Errorf("expected nToReturn 10, got %d", got)
			}
		})
	}
}

func TestEncodeGetMore_Layout(t *testing.T) {
	raw := EncodeGetMore(1, "db.c", 0, 0x1122334455667788).Finish()

	wantLen := HeaderSize + 4 + len("db.c") + 1 + 4 + 8
	if len(raw) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(raw))
	}
	idOff := len(raw) - 8
	if got := int64(binary.LittleEndian.Uint64(raw[idOff:])); got != 0x1122334455667788 {
		t.Errorf("cursor id mismatch: got %#x", got)
	}
}

func TestEncodeKillCursors_Layout(t *testing.T) {
	raw := EncodeKillCursors(1, 42, 43).Finish()

	wantLen := HeaderSize + 4 + 4 + 16
	if len(raw) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(raw))
	}
	if got := int32(binary.LittleEndian.Uint32(raw[20:24])); got != 2 {
		t.Errorf("expected 2 cursors, got %d", got)
	}
	if got := int64(binary.LittleEndian.Uint64(raw[24:32])); got != 42 {
		t.Errorf("expected first cursor 42, got %d", got)
	}
}

// buildReply monta um OP_REPLY bruto para os testes de decode.
func buildReply(responseTo int32, cursorID int64, docs ...bsoncore.Document) []byte {
	total := ReplyHeaderSize
	for _, d := range docs {
		total += len(d)
	}
	raw := make([]byte, total)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(total))
	binary.LittleEndian.PutUint32(raw[4:8], 99)
	binary.LittleEndian.PutUint32(raw[8:12], uint32(responseTo))
	binary.LittleEndian.PutUint32(raw[12:16], uint32(OpReply))
	binary.LittleEndian.PutUint64(raw[20:28], uint64(cursorID))
	binary.LittleEndian.PutUint32(raw[32:36], uint32(len(docs)))
	off := ReplyHeaderSize
	for _, d := range docs {
		copy(raw[off:], d)
		off += len(d)
	}
	return raw
}

func TestDecodeReply_Empty(t *testing.T) {
	reply, err := DecodeReply(buildReply(1, 0))
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.NumberReturned != 0 {
		t.Errorf("expected zero documents, got %d", reply.NumberReturned)
	}
	if reply.CursorID != 0 {
		t.Errorf("expected zero cursor id, got %d", reply.CursorID)
	}
	if len(reply.Docs()) != 0 {
		t.Errorf("expected empty docs blob, got %d bytes", len(reply.Docs()))
	}
}

func TestDecodeReply_WalksDocuments(t *testing.T) {
	d1 := testDoc(t, "a", 1)
	d2 := testDoc(t, "b", 2)
	reply, err := DecodeReply(buildReply(1, 77, d1, d2))
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.CursorID != 77 {
		t.Errorf("expected cursor id 77, got %d", reply.CursorID)
	}

	first, next, err := reply.DocAt(0)
	if err != nil {
		t.Fatalf("DocAt(0): %v", err)
	}
	if !bytes.Equal(first, d1) {
		t.Error("first document mismatch")
	}
	second, end, err := reply.DocAt(next)
	if err != nil {
		t.Fatalf("DocAt(%d): %v", next, err)
	}
	if !bytes.Equal(second, d2) {
		t.Error("second document mismatch")
	}
	if end != len(reply.Docs()) {
		t.Errorf("expected end offset %d, got %d", len(reply.Docs()), end)
	}
}

func TestDecodeReply_Rejects(t *testing.T) {
	valid := buildReply(1, 0)

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			"length below reply header",
			func(raw []byte) []byte {
				binary.LittleEndian.PutUint32(raw[0:4], ReplyHeaderSize-1)
				return raw[:ReplyHeaderSize-1]
			},
			ErrInvalidLength,
		},
		{
			"length above cap",
			func(raw []byte) []byte {
				binary.LittleEndian.PutUint32(raw[0:4], MaxReplySize+1)
				return raw
			},
			ErrInvalidLength,
		},
		{
			"wrong op code",
			func(raw []byte) []byte {
				binary.LittleEndian.PutUint32(raw[12:16], uint32(OpMsg))
				return raw
			},
			ErrInvalidOpCode,
		},
		{
			"declared length beyond buffer",
			func(raw []byte) []byte {
				binary.LittleEndian.PutUint32(raw[0:4], uint32(len(raw)+8))
				return raw
			},
			ErrTruncatedReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := append([]byte{}, valid...)
			_, err := DecodeReply(tt.mutate(raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDocAt_TruncatedDocument(t *testing.T) {
	doc := testDoc(t, "a", 1)
	raw := buildReply(1, 0, doc)
	// Corrompe o tamanho declarado do documento para além do reply.
	binary.LittleEndian.PutUint32(raw[ReplyHeaderSize:], uint32(len(doc)+32))
	reply, err := DecodeReply(raw)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if _, _, err := reply.DocAt(0); !errors.Is(err, ErrTruncatedDocument) {
		t.Errorf("expected ErrTruncatedDocument, got %v", err)
	}
}

func TestValidReplyLength(t *testing.T) {
	tests := []struct {
		n    int32
		want bool
	}{
		{ReplyHeaderSize - 1, false},
		{ReplyHeaderSize, true},
		{MaxReplySize, true},
		{MaxReplySize + 1, false},
	}
	for _, tt := range tests {
		if got := ValidReplyLength(tt.n); got != tt.want {
			t.Errorf("ValidReplyLength(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}
