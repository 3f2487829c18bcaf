// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OpenWriter abre um arquivo para escrita posicional. Se já existe um
// arquivo com esse nome, adota id, tamanho e flags dele (flags do chamador
// têm precedência quando diferentes de FlagDefault); senão cria um id novo
// com tamanho zero. O pending chunk é pré-alocado com o tamanho de um chunk
// para fundir escritas parciais antes do upsert.
func (s *Store) OpenWriter(ctx context.Context, remoteName, contentType string, flags int32) (*File, error) {
	f := &File{
		store:       s,
		writable:    true,
		remoteName:  remoteName,
		contentType: contentType,
		flags:       flags,
	}

	existing, err := s.FindFilename(ctx, remoteName)
	switch {
	case err == nil:
		f.id = existing.id
		f.length = existing.length
		if flags == FlagDefault {
			f.flags = existing.flags
		}
	case errors.Is(err, ErrNotFound):
		f.id = primitive.NewObjectID()
		f.length = 0
	default:
		return nil, err
	}

	f.pending = make([]byte, s.transform.PendingSize(int(s.chunkSize), f.flags))
	return f, nil
}

// Write grava p na posição corrente, alinhando escritas de offset arbitrário
// aos limites de chunk:
//
//  1. cabeça parcial: funde no pending chunk (carregando o chunk existente
//     quando o pending está vazio) e flusha ao completar um chunk;
//  2. chunks inteiros: upsert direto do buffer do chamador, sem passar pelo
//     pending;
//  3. cauda: copia para o pending, com read-modify-write do chunk coberto
//     quando a escrita termina antes do fim do arquivo.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	if !f.writable {
		return 0, ErrReadOnly
	}

	cs := int64(f.store.chunkSize)
	total := len(p)

	f.chunkNum = int32(f.pos / cs)
	bufPos := int(f.pos % cs)

	if bufPos > 0 {
		if f.pendingLen == 0 {
			if err := f.loadPendingChunk(ctx); err != nil {
				return 0, err
			}
		}
		n := int(cs) - bufPos
		if n > len(p) {
			n = len(p)
		}
		copy(f.pending[bufPos:], p[:n])
		if bufPos+n > f.pendingLen {
			f.pendingLen = bufPos + n
		}
		f.pos += int64(n)
		if bufPos+n >= int(cs) {
			if err := f.flushPending(ctx); err != nil {
				return total - len(p), err
			}
		}
		p = p[n:]
	}

	for int64(len(p)) >= cs {
		if err := f.store.writeChunk(ctx, f.id, f.chunkNum, p[:cs], f.flags); err != nil {
			return total - len(p), err
		}
		f.chunkNum++
		f.pos += cs
		if f.pos > f.length {
			f.length = f.pos
		}
		p = p[cs:]
	}

	if len(p) > 0 {
		if f.pos+int64(len(p)) < f.length {
			if err := f.loadPendingChunk(ctx); err != nil {
				return total - len(p), err
			}
		}
		copy(f.pending, p)
		if len(p) > f.pendingLen {
			f.pendingLen = len(p)
		}
		f.pos += int64(len(p))
	}

	return total, nil
}

// flushPending faz o upsert do pending chunk corrente, avança chunk_num,
// atualiza o watermark de tamanho e esvazia o pending. No-op com pending
// vazio.
func (f *File) flushPending(ctx context.Context) error {
	if f.pendingLen == 0 {
		return nil
	}
	if err := f.store.writeChunk(ctx, f.id, f.chunkNum, f.pending[:f.pendingLen], f.flags); err != nil {
		return err
	}
	f.chunkNum++
	if f.pos > f.length {
		f.length = f.pos
	}
	f.pendingLen = 0
	return nil
}

// loadPendingChunk carrega o chunk que cobre a posição corrente para dentro
// do pending, para read-modify-write de escritas parciais.
func (f *File) loadPendingChunk(ctx context.Context) error {
	if f.pending == nil {
		f.pending = make([]byte, f.store.transform.PendingSize(int(f.store.chunkSize), f.flags))
	}
	n := int32(f.pos / int64(f.store.chunkSize))
	data, err := f.GetChunk(ctx, n)
	if err != nil {
		return err
	}
	if len(data) > len(f.pending) {
		return fmt.Errorf("gridfs: chunk %d larger than pending buffer (%d > %d)", n, len(data), len(f.pending))
	}
	copy(f.pending, data)
	f.pendingLen = len(data)
	f.chunkNum = n
	return nil
}

// ioWriter prende um File em modo writer a um contexto para satisfazer
// io.Writer.
type ioWriter struct {
	ctx context.Context
	f   *File
}

func (w ioWriter) Write(p []byte) (int, error) {
	return w.f.Write(w.ctx, p)
}

// IOWriter retorna uma visão io.Writer do arquivo, presa ao contexto dado.
// Combina com NewThrottledWriter para uploads com limite de banda.
func (f *File) IOWriter(ctx context.Context) io.Writer {
	return ioWriter{ctx: ctx, f: f}
}

// CloseWriter flusha o pending restante, grava o documento de metadados e
// encerra o modo de escrita. O metadado é gravado por último: observadores
// veem o arquivo antigo ou o novo por inteiro.
func (f *File) CloseWriter(ctx context.Context) error {
	if !f.writable {
		return ErrReadOnly
	}
	if err := f.flushPending(ctx); err != nil {
		return err
	}
	f.pending = nil
	f.writable = false
	return f.store.insertFile(ctx, f.remoteName, f.id, f.length, f.contentType, f.flags)
}
