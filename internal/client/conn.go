// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/nishisan-dev/n-docstore/internal/wire"
)

// Connection é dona de um socket ativo e de até dois endpoints (par
// primário/secundário). Não é segura para operações concorrentes: cada
// conexão tem um único dono.
//
// No modo assíncrono a conexão adota um fd não-bloqueante de posse do
// chamador e faz staging de envio/recepção nos buffers elásticos in/out;
// não há swap de endpoint, timeouts nem leituras bloqueantes.
type Connection struct {
	sock      net.Conn
	left      *Options
	right     *Options
	connected bool
	lastErr   error
	logger    *slog.Logger

	async bool
	fd    int
	in    Buffer
	out   Buffer
}

// Dial conecta a um único endpoint. opts nil usa DefaultOptions.
func Dial(ctx context.Context, opts *Options, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Connection{left: opts.withDefaults(), logger: logger}
	if err := c.connectEndpoint(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewPair registra os dois endpoints de um par de réplica sem conectar.
// O chamador decide entre Reconnect e ReconnectBackoff.
func NewPair(left, right *Options, logger *slog.Logger) (*Connection, error) {
	if left == nil || right == nil {
		return nil, ErrBadArg
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		left:   left.withDefaults(),
		right:  right.withDefaults(),
		logger: logger,
	}, nil
}

// DialPair registra os dois endpoints de um par de réplica e conecta no que
// estiver de master, tentando left primeiro.
func DialPair(ctx context.Context, left, right *Options, logger *slog.Logger) (*Connection, error) {
	c, err := NewPair(left, right, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connectEndpoint abre o socket para o endpoint left corrente.
func (c *Connection) connectEndpoint(ctx context.Context) error {
	c.sock = nil
	c.connected = false

	dialer := &net.Dialer{Timeout: c.left.ConnectTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", c.left.Addr())
	if err != nil {
		c.lastErr = ErrConnFail
		return fmt.Errorf("%w: %s: %v", ErrConnFail, c.left.Addr(), err)
	}
	if tcp, ok := sock.(*net.TCPConn); ok {
		// nagle
		_ = tcp.SetNoDelay(true)
	}
	c.sock = sock
	c.connected = true
	c.lastErr = nil
	return nil
}

// swapPair troca os papéis de left e right.
func (c *Connection) swapPair() {
	c.left, c.right = c.right, c.left
}

// Reconnect derruba a conexão corrente e reconecta. Em um par, tenta left e
// sonda ismaster; se o endpoint não for master, troca e tenta right. Right
// alcançável mas secundário retorna ErrNotMaster; ambos fora do ar retorna o
// primeiro erro.
func (c *Connection) Reconnect(ctx context.Context) error {
	if c.async {
		return fmt.Errorf("%w: reconnect not available in async mode", ErrBadArg)
	}
	_ = c.Disconnect()

	// Servidor único.
	if c.right == nil {
		return c.connectEndpoint(ctx)
	}

	// Par de réplica.
	firstErr := c.connectEndpoint(ctx)
	if firstErr == nil {
		if master, _ := c.IsMaster(ctx); master {
			return nil
		}
		c.logger.Debug("endpoint is not master, swapping pair", "endpoint", c.left.Addr())
		_ = c.Disconnect()
	}

	c.swapPair()

	if err := c.connectEndpoint(ctx); err == nil {
		if master, _ := c.IsMaster(ctx); master {
			return nil
		}
		c.lastErr = ErrNotMaster
		return ErrNotMaster
	} else if firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// RetryPolicy parametriza o backoff exponencial de ReconnectBackoff.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
}

// ReconnectBackoff tenta Reconnect com backoff exponencial. ErrNotMaster e
// ErrBadArg são permanentes e interrompem as tentativas.
func (c *Connection) ReconnectBackoff(ctx context.Context, policy RetryPolicy) error {
	bo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		bo.InitialInterval = policy.InitialInterval
	}
	var wrapped backoff.BackOff = bo
	if policy.MaxAttempts > 0 {
		wrapped = backoff.WithMaxRetries(bo, policy.MaxAttempts)
	}
	return backoff.Retry(func() error {
		err := c.Reconnect(ctx)
		if errors.Is(err, ErrNotMaster) || errors.Is(err, ErrBadArg) {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Warn("reconnect attempt failed", "error", err)
		}
		return err
	}, backoff.WithContext(wrapped, ctx))
}

// Connected informa se há um socket ativo.
func (c *Connection) Connected() bool {
	return c.connected
}

// LastError retorna o último erro registrado na conexão.
func (c *Connection) LastError() error {
	return c.lastErr
}

// Addr retorna o endereço do endpoint ativo.
func (c *Connection) Addr() string {
	if c.left == nil {
		return ""
	}
	return c.left.Addr()
}

// Disconnect fecha o socket mantendo os endpoints registrados. No-op no modo
// assíncrono: o fd é de posse do chamador.
func (c *Connection) Disconnect() error {
	if c.async {
		return nil
	}
	if !c.connected {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	c.connected = false
	return err
}

// Close derruba a conexão e libera os endpoints e, no modo assíncrono, os
// buffers de staging.
func (c *Connection) Close() error {
	if c.async {
		c.in.Release()
		c.out.Release()
		c.connected = false
		return nil
	}
	err := c.Disconnect()
	c.left = nil
	c.right = nil
	return err
}

// opDeadline calcula o deadline da próxima transferência: o op-timeout do
// endpoint, limitado pelo deadline do contexto quando houver.
func (c *Connection) opDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.left.OpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// mapNetErr classifica um erro de transferência: deadline estourado vira
// ErrReadTimeout, o resto vira ErrIO. Ambos marcam a conexão como errada.
func (c *Connection) mapNetErr(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.lastErr = ErrReadTimeout
		return fmt.Errorf("%w: %v", ErrReadTimeout, err)
	}
	c.lastErr = ErrIO
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// sendMessage envia uma mensagem pronta: escrita bloqueante com deadline no
// modo síncrono, append no buffer de saída no modo assíncrono.
func (c *Connection) sendMessage(ctx context.Context, m *wire.Message) error {
	raw := m.Finish()
	if c.async {
		c.out.Append(raw)
		return nil
	}
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.sock.SetWriteDeadline(c.opDeadline(ctx)); err != nil {
		return c.mapNetErr(err)
	}
	if _, err := c.sock.Write(raw); err != nil {
		return c.mapNetErr(err)
	}
	return nil
}

// readFull lê exatamente len(p) bytes com deadline de operação.
func (c *Connection) readFull(ctx context.Context, p []byte) error {
	if err := c.sock.SetReadDeadline(c.opDeadline(ctx)); err != nil {
		return c.mapNetErr(err)
	}
	if _, err := io.ReadFull(c.sock, p); err != nil {
		return c.mapNetErr(err)
	}
	return nil
}

// readReply lê o próximo OP_REPLY completo. Valida o tamanho declarado antes
// de alocar: replies fora de [36B, 64MiB] são tratados como corrupção.
func (c *Connection) readReply(ctx context.Context) (*wire.Reply, error) {
	if c.async {
		return c.readBufferedReply()
	}
	if !c.connected {
		return nil, ErrNotConnected
	}

	var head [wire.HeaderSize]byte
	if err := c.readFull(ctx, head[:]); err != nil {
		return nil, err
	}
	header, err := wire.DecodeHeader(head[:])
	if err != nil {
		return nil, err
	}
	if !wire.ValidReplyLength(header.MessageLength) {
		c.lastErr = ErrIO
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidLength, header.MessageLength)
	}

	raw := make([]byte, header.MessageLength)
	copy(raw, head[:])
	if err := c.readFull(ctx, raw[wire.HeaderSize:]); err != nil {
		return nil, err
	}
	return wire.DecodeReply(raw)
}

// Insert envia um OP_INSERT com um ou mais documentos em uma única mensagem.
func (c *Connection) Insert(ctx context.Context, ns string, docs ...bsoncore.Document) error {
	return c.sendMessage(ctx, wire.EncodeInsert(0, ns, 0, docs...))
}

// InsertBatch envia um lote de documentos, opcionalmente com
// continue-on-error para não abortar o lote no primeiro documento rejeitado.
func (c *Connection) InsertBatch(ctx context.Context, ns string, docs []bsoncore.Document, continueOnError bool) error {
	var flags int32
	if continueOnError {
		flags |= wire.InsertContinueOnError
	}
	return c.sendMessage(ctx, wire.EncodeInsert(0, ns, flags, docs...))
}

// Update envia um OP_UPDATE com os flags dados (upsert, multi).
func (c *Connection) Update(ctx context.Context, ns string, selector, update bsoncore.Document, flags int32) error {
	return c.sendMessage(ctx, wire.EncodeUpdate(0, ns, flags, selector, update))
}

// Remove envia um OP_DELETE para os documentos casando com selector.
func (c *Connection) Remove(ctx context.Context, ns string, selector bsoncore.Document) error {
	return c.sendMessage(ctx, wire.EncodeDelete(0, ns, selector))
}

// KillCursors encerra cursores server-side explicitamente.
func (c *Connection) KillCursors(ctx context.Context, cursorIDs ...int64) error {
	if len(cursorIDs) == 0 {
		return nil
	}
	return c.sendMessage(ctx, wire.EncodeKillCursors(0, cursorIDs...))
}

// Find envia um OP_QUERY e retorna o cursor sobre o primeiro batch do
// servidor. fields nil omite a projeção.
func (c *Connection) Find(ctx context.Context, ns string, query, fields bsoncore.Document, nToReturn, nToSkip int32, flags int32) (*Cursor, error) {
	if len(query) == 0 {
		query = emptyDoc()
	}
	if err := c.sendMessage(ctx, wire.EncodeQuery(0, ns, flags, nToSkip, nToReturn, query, fields)); err != nil {
		return nil, err
	}
	reply, err := c.readReply(ctx)
	if err != nil {
		return nil, err
	}
	return newCursor(c, ns, reply), nil
}

// FindOne executa Find com nToReturn=1 e retorna uma cópia profunda do
// primeiro documento, com o cursor já encerrado. Sem resultado retorna
// ErrNotFound.
func (c *Connection) FindOne(ctx context.Context, ns string, query, fields bsoncore.Document) (bsoncore.Document, error) {
	cursor, err := c.Find(ctx, ns, query, fields, 1, 0, 0)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	current := cursor.Current()
	out := make(bsoncore.Document, len(current))
	copy(out, current)
	return out, nil
}

// emptyDoc retorna o documento vazio (5 bytes).
func emptyDoc() bsoncore.Document {
	return bsoncore.NewDocumentBuilder().Build()
}
