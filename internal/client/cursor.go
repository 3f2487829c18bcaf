// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"context"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/nishisan-dev/n-docstore/internal/wire"
)

// Cursor itera os batches de um OP_QUERY, pedindo get-more implícito ao
// esgotar o batch corrente. current aponta sempre para dentro do reply de
// posse do cursor; nunca sobrevive ao Close.
//
// Falha de rede durante o refill encerra a iteração (Next retorna false e
// Err fica registrado); o teardown continua sendo responsabilidade única do
// chamador via Close, que é idempotente.
type Cursor struct {
	conn    *Connection
	ns      string
	reply   *wire.Reply
	current bsoncore.Document
	nextOff int
	err     error
}

func newCursor(conn *Connection, ns string, reply *wire.Reply) *Cursor {
	return &Cursor{conn: conn, ns: ns, reply: reply}
}

// Next avança para o próximo documento. Retorna false no fim da iteração ou
// em erro de refill; consulte Err para distinguir.
func (c *Cursor) Next(ctx context.Context) bool {
	if c == nil || c.reply == nil || c.reply.NumberReturned == 0 {
		return false
	}

	// Primeiro passo: posiciona no primeiro documento do reply.
	if c.current == nil {
		return c.stepAt(0)
	}

	if c.nextOff >= len(c.reply.Docs()) {
		if !c.getMore(ctx) {
			return false
		}
		return c.stepAt(0)
	}
	return c.stepAt(c.nextOff)
}

// stepAt posiciona current no documento em off dentro do reply corrente.
func (c *Cursor) stepAt(off int) bool {
	doc, next, err := c.reply.DocAt(off)
	if err != nil {
		c.err = err
		c.reply = nil
		c.current = nil
		return false
	}
	c.current = doc
	c.nextOff = next
	return true
}

// getMore pede o próximo batch ao servidor. Retorna false quando o cursor
// server-side acabou (id zero), quando o refill vem vazio ou em erro de rede.
func (c *Cursor) getMore(ctx context.Context) bool {
	if c.reply == nil || c.reply.CursorID == 0 {
		return false
	}
	cursorID := c.reply.CursorID

	if err := c.conn.sendMessage(ctx, wire.EncodeGetMore(0, c.ns, 0, cursorID)); err != nil {
		c.err = err
		c.reply = nil
		return false
	}

	reply, err := c.conn.readReply(ctx)
	if err != nil {
		c.err = err
		c.reply = nil
		return false
	}
	c.reply = reply
	return reply.NumberReturned > 0
}

// Current retorna o documento corrente. Válido apenas após um Next true e
// somente até o próximo Next/Close.
func (c *Cursor) Current() bsoncore.Document {
	return c.current
}

// Err retorna o erro que encerrou a iteração, se houve um.
func (c *Cursor) Err() error {
	return c.err
}

// Namespace retorna o namespace de origem do cursor.
func (c *Cursor) Namespace() string {
	return c.ns
}

// Close encerra o cursor. Envia kill-cursors apenas quando há id server-side
// não-zero; os recursos do cliente são liberados em qualquer caminho, mesmo
// com erro de rede no kill. Idempotente.
func (c *Cursor) Close(ctx context.Context) error {
	if c == nil || c.reply == nil {
		if c != nil {
			c.current = nil
		}
		return nil
	}

	var err error
	if id := c.reply.CursorID; id != 0 {
		err = c.conn.KillCursors(ctx, id)
	}
	c.reply = nil
	c.current = nil
	return err
}
