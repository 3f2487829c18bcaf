// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
	"golang.org/x/sys/unix"

	"github.com/nishisan-dev/n-docstore/internal/wire"
)

// consumeChunk é o tamanho da leitura por passada de Consume.
const consumeChunk = 4096

// NewAsync adota um fd já conectado e não-bloqueante, de posse do chamador,
// e cria a conexão no modo assíncrono pipelined. O event loop é do chamador:
// a conexão só informa interesse via Pollmask e avança via Consume.
func NewAsync(fd int, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		fd:        fd,
		async:     true,
		connected: true,
		logger:    logger,
	}
}

// Pollmask retorna os eventos de interesse correntes: sempre erro e leitura;
// escrita apenas com bytes pendentes no buffer de saída.
func (c *Connection) Pollmask() int16 {
	events := int16(unix.POLLERR | unix.POLLHUP | unix.POLLIN)
	if c.out.Len() > 0 {
		events |= unix.POLLOUT
	}
	return events
}

// Consume avança as duas direções conforme os eventos observados pelo loop
// do chamador: drena o buffer de saída quando o fd está gravável e acumula
// bytes recebidos no buffer de entrada quando está legível.
//
// Retorna ready=true apenas quando um frame COMPLETO está bufferizado
// (comprimento declarado inteiro disponível); leitura parcial retorna false.
func (c *Connection) Consume(revents int16) (ready bool, err error) {
	if revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		c.lastErr = ErrIO
		return false, fmt.Errorf("%w: poll reported error on fd %d", ErrIO, c.fd)
	}

	if revents&unix.POLLOUT != 0 && c.out.Len() > 0 {
		n, werr := unix.Write(c.fd, c.out.Window())
		switch {
		case n > 0:
			c.out.Erase(n)
		case werr == unix.EAGAIN:
			// Socket encheu entre o poll e o write; tenta na próxima volta.
		case werr != nil:
			c.lastErr = ErrIO
			return false, fmt.Errorf("%w: %v", ErrIO, werr)
		}
	}

	if revents&unix.POLLIN != 0 {
		var buf [consumeChunk]byte
		n, rerr := unix.Read(c.fd, buf[:])
		switch {
		case n > 0:
			c.in.Append(buf[:n])
		case rerr == unix.EAGAIN:
		case rerr != nil:
			c.lastErr = ErrIO
			return false, fmt.Errorf("%w: %v", ErrIO, rerr)
		case n == 0:
			c.lastErr = ErrIO
			return false, fmt.Errorf("%w: connection closed by peer", ErrIO)
		}

		length, ok := c.in.PeekUint32LE()
		if !ok {
			return false, nil
		}
		if !wire.ValidReplyLength(int32(length)) {
			c.lastErr = ErrIO
			return false, fmt.Errorf("%w: %d", wire.ErrInvalidLength, int32(length))
		}
		return c.in.Len() >= int(length), nil
	}

	return false, nil
}

// FindRequest serializa um OP_QUERY no buffer de saída sem bloquear. O reply
// correspondente é consumido depois via FindResponse, na ordem dos requests.
func (c *Connection) FindRequest(ns string, query, fields bsoncore.Document, nToReturn, nToSkip int32, flags int32) {
	if len(query) == 0 {
		query = emptyDoc()
	}
	c.out.Append(wire.EncodeQuery(0, ns, flags, nToSkip, nToReturn, query, fields).Finish())
}

// FindResponse decodifica o próximo reply completo do buffer de entrada e
// retorna o cursor sobre ele. Sem um frame completo, ErrReplyPending.
func (c *Connection) FindResponse(ns string) (*Cursor, error) {
	reply, err := c.readBufferedReply()
	if err != nil {
		return nil, err
	}
	return newCursor(c, ns, reply), nil
}

// readBufferedReply extrai um reply completo do buffer de entrada.
func (c *Connection) readBufferedReply() (*wire.Reply, error) {
	length, ok := c.in.PeekUint32LE()
	if !ok {
		return nil, ErrReplyPending
	}
	if !wire.ValidReplyLength(int32(length)) {
		c.lastErr = ErrIO
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidLength, int32(length))
	}
	if c.in.Len() < int(length) {
		return nil, ErrReplyPending
	}

	raw := make([]byte, length)
	copy(raw, c.in.Window()[:length])
	c.in.Erase(int(length))
	return wire.DecodeReply(raw)
}

// Async informa se a conexão está no modo assíncrono.
func (c *Connection) Async() bool {
	return c.async
}

// Buffered retorna os bytes pendentes (entrada, saída) para instrumentação.
func (c *Connection) Buffered() (in, out int) {
	return c.in.Len(), c.out.Len()
}
