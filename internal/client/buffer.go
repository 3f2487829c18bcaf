// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import "encoding/binary"

// minBufferSize é o piso de alocação do buffer elástico.
const minBufferSize = 512

// Buffer é um buffer de bytes elástico de duas pontas usado para staging de
// envio/recepção no modo assíncrono. Mantém (data, size, offset, length) com
// os invariantes: offset+length <= size, size >= 512 e size potência de dois.
// Append escreve em data[offset+length]; Erase avança offset; quando a cauda
// estouraria mas os dados cabem, compacta para offset 0 antes de crescer;
// quando length < size/2 (e size > 512), encolhe para a menor potência de
// dois >= length.
type Buffer struct {
	data []byte
	off  int
	len  int
}

// nextPow2 retorna a menor potência de dois >= n, com piso em minBufferSize.
func nextPow2(n int) int {
	size := minBufferSize
	for size < n {
		size <<= 1
	}
	return size
}

// Append acrescenta p ao final da janela de dados, crescendo ou compactando
// conforme necessário.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.data == nil {
		b.data = make([]byte, nextPow2(len(p)))
	}
	size := len(b.data)
	if b.off+b.len+len(p) >= size {
		if b.len+len(p) >= size {
			// Não cabe nem compactado: cresce dobrando e compacta junto.
			grown := make([]byte, nextPow2(b.len+len(p)+1))
			copy(grown, b.data[b.off:b.off+b.len])
			b.data = grown
			b.off = 0
		} else {
			// Cabe no total mas não na cauda: só compacta.
			copy(b.data, b.data[b.off:b.off+b.len])
			b.off = 0
		}
	}
	copy(b.data[b.off+b.len:], p)
	b.len += len(p)
}

// Erase descarta os n bytes mais antigos da janela. Encolhe a alocação quando
// menos da metade dela está em uso.
func (b *Buffer) Erase(n int) {
	if n > b.len {
		n = b.len
	}
	b.off += n
	b.len -= n

	if b.data != nil && b.len < len(b.data)>>1 && len(b.data) > minBufferSize {
		shrunk := make([]byte, nextPow2(b.len))
		copy(shrunk, b.data[b.off:b.off+b.len])
		b.data = shrunk
		b.off = 0
	}
}

// Len retorna o número de bytes na janela de dados.
func (b *Buffer) Len() int {
	return b.len
}

// Size retorna o tamanho alocado. Zero antes do primeiro Append.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Offset retorna o início da janela de dados dentro da alocação.
func (b *Buffer) Offset() int {
	return b.off
}

// Window retorna a janela de dados corrente, sem cópia.
func (b *Buffer) Window() []byte {
	return b.data[b.off : b.off+b.len]
}

// PeekUint32LE lê os quatro primeiros bytes da janela como little-endian,
// sem consumir. Retorna false com menos de quatro bytes disponíveis.
func (b *Buffer) PeekUint32LE() (uint32, bool) {
	if b.len < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b.data[b.off:]), true
}

// Release devolve a alocação ao estado inicial.
func (b *Buffer) Release() {
	b.data = nil
	b.off = 0
	b.len = 0
}
