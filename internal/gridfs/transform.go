// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// ChunkTransform processa cada chunk na fronteira com o servidor: Pre na
// escrita, Post na leitura (inversa de Pre). O store não interpreta o
// conteúdo; um transform que retorna o próprio slice de entrada sinaliza
// passagem direta, sem alocação.
type ChunkTransform interface {
	// Pre transforma o payload de um chunk antes do upsert/insert.
	Pre(src []byte, flags int32) ([]byte, error)
	// Post inverte Pre sobre os bytes vindos do servidor.
	Post(src []byte, flags int32) ([]byte, error)
	// PendingSize dimensiona o pending chunk para os flags dados.
	PendingSize(chunkSize int, flags int32) int
}

// IdentityTransform é o transform default: passagem direta nos dois sentidos.
type IdentityTransform struct{}

// Pre retorna src sem cópia.
func (IdentityTransform) Pre(src []byte, _ int32) ([]byte, error) { return src, nil }

// Post retorna src sem cópia.
func (IdentityTransform) Post(src []byte, _ int32) ([]byte, error) { return src, nil }

// PendingSize retorna o próprio chunkSize.
func (IdentityTransform) PendingSize(chunkSize int, _ int32) int { return chunkSize }

// ZstdTransform comprime chunks com zstd quando o arquivo carrega
// FlagCompress; sem o flag é passagem direta.
type ZstdTransform struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdTransform cria o transform com encoder/decoder reutilizáveis.
func NewZstdTransform() (*ZstdTransform, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("gridfs: creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("gridfs: creating zstd decoder: %w", err)
	}
	return &ZstdTransform{enc: enc, dec: dec}, nil
}

// Pre comprime src quando FlagCompress está presente.
func (t *ZstdTransform) Pre(src []byte, flags int32) ([]byte, error) {
	if flags&FlagCompress == 0 {
		return src, nil
	}
	return t.enc.EncodeAll(src, nil), nil
}

// Post descomprime src quando FlagCompress está presente.
func (t *ZstdTransform) Post(src []byte, flags int32) ([]byte, error) {
	if flags&FlagCompress == 0 {
		return src, nil
	}
	out, err := t.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("gridfs: zstd decode: %w", err)
	}
	return out, nil
}

// PendingSize retorna o próprio chunkSize: o pending guarda dados ainda não
// transformados.
func (t *ZstdTransform) PendingSize(chunkSize int, _ int32) int { return chunkSize }

// GzipTransform comprime chunks com gzip paralelo (pgzip) quando o arquivo
// carrega FlagCompress.
type GzipTransform struct{}

// Pre comprime src quando FlagCompress está presente.
func (GzipTransform) Pre(src []byte, flags int32) ([]byte, error) {
	if flags&FlagCompress == 0 {
		return src, nil
	}
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("gridfs: gzip encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gridfs: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Post descomprime src quando FlagCompress está presente.
func (GzipTransform) Post(src []byte, flags int32) ([]byte, error) {
	if flags&FlagCompress == 0 {
		return src, nil
	}
	r, err := pgzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gridfs: gzip decode: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gridfs: gzip decode: %w", err)
	}
	return out, nil
}

// PendingSize retorna o próprio chunkSize.
func (GzipTransform) PendingSize(chunkSize int, _ int32) int { return chunkSize }
