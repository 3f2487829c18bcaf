// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize é o burst máximo do rate limiter, alinhado ao tamanho de um
// chunk.
const maxBurstSize = DefaultChunkSize

// ThrottledWriter é um io.Writer com rate limiting por token bucket. Limita
// a taxa de escrita a bytesPerSec bytes/segundo; útil em volta de um upload
// para o store.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter cria um ThrottledWriter com a taxa máxima em
// bytes/segundo. Se bytesPerSec <= 0, retorna o writer original sem
// throttle (bypass).
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write implementa io.Writer com rate limiting. Divide escritas maiores que
// o burst em pedaços para consumir tokens gradualmente.
func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		chunk := len(p)
		if chunk > tw.limiter.Burst() {
			chunk = tw.limiter.Burst()
		}

		if err := tw.limiter.WaitN(tw.ctx, chunk); err != nil {
			return totalWritten, err
		}

		n, err := tw.w.Write(p[:chunk])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[n:]
	}

	return totalWritten, nil
}
