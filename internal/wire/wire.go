// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package wire implementa o framing binário do protocolo legado do servidor
// de documentos: header de 16 bytes little-endian, mensagens op-code e o
// decode de replies.
package wire

import "errors"

// Op codes do protocolo. OpReply é sempre server → client.
const (
	OpReply       OpCode = 1
	OpMsg         OpCode = 1000 // deprecated; nunca enviado, rejeitado no decode
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

// OpCode identifica o tipo de uma mensagem no wire.
type OpCode int32

// Tamanhos fixos do protocolo.
const (
	// HeaderSize é o tamanho do header comum: length + requestID + responseTo + opCode.
	HeaderSize = 16
	// ReplyHeaderSize é header + campos de reply (flags, cursorID, startingFrom, numberReturned).
	ReplyHeaderSize = HeaderSize + 20
	// MaxReplySize é o maior reply aceito; acima disso é corrupção.
	MaxReplySize = 64 * 1024 * 1024
)

// Flags de update (OP_UPDATE).
const (
	UpdateUpsert int32 = 1 << 0
	UpdateMulti  int32 = 1 << 1
)

// Flags de insert (OP_INSERT).
const (
	InsertContinueOnError int32 = 1 << 0
)

// Flags de query (OP_QUERY).
const (
	QueryTailable        int32 = 1 << 1
	QuerySlaveOK         int32 = 1 << 2
	QueryNoCursorTimeout int32 = 1 << 4
	QueryAwaitData       int32 = 1 << 5
	QueryExhaust         int32 = 1 << 6
	QueryPartial         int32 = 1 << 7
)

// Flags de reply (OP_REPLY).
const (
	ReplyCursorNotFound int32 = 1 << 0
	ReplyQueryFailure   int32 = 1 << 1
)

// Erros do wire.
var (
	ErrInvalidLength     = errors.New("wire: implausible message length")
	ErrInvalidOpCode     = errors.New("wire: unexpected op code")
	ErrTruncatedReply    = errors.New("wire: truncated reply")
	ErrTruncatedDocument = errors.New("wire: truncated document in reply")
)

// Header é o cabeçalho comum de 16 bytes de toda mensagem.
// Formato no wire: [MessageLength int32 LE] [RequestID int32 LE]
// [ResponseTo int32 LE] [OpCode int32 LE].
// MessageLength inclui o próprio header.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}
