// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Message é uma mensagem de saída construída em uma única alocação do
// tamanho exato declarado no header. Os appends avançam um cursor interno;
// Finish exige que o cursor termine exatamente em MessageLength.
type Message struct {
	buf []byte
	w   int
}

// NewMessage aloca uma mensagem de total bytes e grava o header.
// Se requestID for 0, um id aleatório não-zero é gerado.
func NewMessage(total, requestID, responseTo int32, op OpCode) *Message {
	if total < HeaderSize {
		panic(fmt.Sprintf("wire: message size %d below header size", total))
	}
	for requestID == 0 {
		requestID = rand.Int31()
	}
	m := &Message{buf: make([]byte, total)}
	binary.LittleEndian.PutUint32(m.buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(m.buf[4:8], uint32(requestID))
	binary.LittleEndian.PutUint32(m.buf[8:12], uint32(responseTo))
	binary.LittleEndian.PutUint32(m.buf[12:16], uint32(op))
	m.w = HeaderSize
	return m
}

// RequestID retorna o id gravado no header.
func (m *Message) RequestID() int32 {
	return int32(binary.LittleEndian.Uint32(m.buf[4:8]))
}

// grow reserva n bytes no cursor. Estourar o tamanho declarado é bug de
// construção, fatal por contrato.
func (m *Message) grow(n int) int {
	if m.w+n > len(m.buf) {
		panic(fmt.Sprintf("wire: message build overflow: need %d bytes at offset %d of %d", n, m.w, len(m.buf)))
	}
	w := m.w
	m.w += n
	return w
}

// AppendBytes copia p no cursor atual.
func (m *Message) AppendBytes(p []byte) *Message {
	w := m.grow(len(p))
	copy(m.buf[w:], p)
	return m
}

// AppendInt32 grava v em little-endian.
func (m *Message) AppendInt32(v int32) *Message {
	w := m.grow(4)
	binary.LittleEndian.PutUint32(m.buf[w:], uint32(v))
	return m
}

// AppendInt64 grava v em little-endian.
func (m *Message) AppendInt64(v int64) *Message {
	w := m.grow(8)
	binary.LittleEndian.PutUint64(m.buf[w:], uint64(v))
	return m
}

// AppendCString grava s seguido do terminador NUL.
func (m *Message) AppendCString(s string) *Message {
	w := m.grow(len(s) + 1)
	copy(m.buf[w:], s)
	m.buf[w+len(s)] = 0
	return m
}

// AppendDocument grava um documento já serializado.
func (m *Message) AppendDocument(doc bsoncore.Document) *Message {
	return m.AppendBytes(doc)
}

// Finish valida que a mensagem foi preenchida por inteiro e retorna os bytes
// prontos para envio. Cursor fora do tamanho declarado é bug de construção.
func (m *Message) Finish() []byte {
	if m.w != len(m.buf) {
		panic(fmt.Sprintf("wire: message build size mismatch: wrote %d of %d bytes", m.w, len(m.buf)))
	}
	return m.buf
}
