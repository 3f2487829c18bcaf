// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// DecodeHeader interpreta os primeiros 16 bytes de uma mensagem.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncatedReply
	}
	return Header{
		MessageLength: int32(binary.LittleEndian.Uint32(b[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(b[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(b[8:12])),
		OpCode:        OpCode(binary.LittleEndian.Uint32(b[12:16])),
	}, nil
}

// ValidReplyLength verifica os limites de tamanho de um reply declarado.
// Fora de [ReplyHeaderSize, MaxReplySize] é quase certamente corrupção.
func ValidReplyLength(n int32) bool {
	return n >= ReplyHeaderSize && n <= MaxReplySize
}

// Reply é um OP_REPLY decodificado. O slice raw inteiro é de posse do Reply;
// os documentos retornados por DocAt são views sem cópia sobre ele.
type Reply struct {
	Header         Header
	Flags          int32
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32

	docs []byte
}

// DecodeReply decodifica uma mensagem completa (header incluso) em um Reply.
func DecodeReply(raw []byte) (*Reply, error) {
	head, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if head.OpCode != OpReply {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidOpCode, head.OpCode, OpReply)
	}
	if !ValidReplyLength(head.MessageLength) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, head.MessageLength)
	}
	if int(head.MessageLength) != len(raw) {
		return nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncatedReply, head.MessageLength, len(raw))
	}
	return &Reply{
		Header:         head,
		Flags:          int32(binary.LittleEndian.Uint32(raw[16:20])),
		CursorID:       int64(binary.LittleEndian.Uint64(raw[20:28])),
		StartingFrom:   int32(binary.LittleEndian.Uint32(raw[28:32])),
		NumberReturned: int32(binary.LittleEndian.Uint32(raw[32:36])),
		docs:           raw[ReplyHeaderSize:],
	}, nil
}

// Docs retorna o blob contíguo de documentos do reply.
func (r *Reply) Docs() []byte {
	return r.docs
}

// DocAt retorna o documento no offset off (relativo a Docs) e o offset do
// documento seguinte. off == len(Docs()) indica fim do reply.
func (r *Reply) DocAt(off int) (bsoncore.Document, int, error) {
	if off < 0 || off+4 > len(r.docs) {
		return nil, 0, ErrTruncatedDocument
	}
	size := int(binary.LittleEndian.Uint32(r.docs[off:]))
	if size < 5 || off+size > len(r.docs) {
		return nil, 0, ErrTruncatedDocument
	}
	return bsoncore.Document(r.docs[off : off+size]), off + size, nil
}
