// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cacheOverhead é a estimativa de custo fixo por entrada: chave, nó da lista
// e ponteiros.
const cacheOverhead = 64

// chunkCacheKey identifica um chunk no cache.
type chunkCacheKey struct {
	id primitive.ObjectID
	n  int32
}

// chunkCache é um LRU de chunks pós-transform limitado em bytes, usado no
// caminho de leitura. As escritas invalidam a chave correspondente; nil
// (cache desabilitado) é seguro em todos os métodos.
type chunkCache struct {
	mu   sync.Mutex
	c    *lru.Cache[chunkCacheKey, []byte]
	free int
	size int
}

// newChunkCache cria um cache limitado a size bytes. size <= 0 desabilita.
func newChunkCache(size int) *chunkCache {
	if size <= 0 {
		return nil
	}
	cc := &chunkCache{free: size, size: size}

	maxEntries := size / cacheOverhead
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := lru.NewWithEvict[chunkCacheKey, []byte](maxEntries, func(_ chunkCacheKey, v []byte) {
		cc.free += len(v) + cacheOverhead
	})
	if err != nil {
		return nil
	}
	cc.c = c
	return cc
}

// Add registra o payload de um chunk. Entradas maiores que o orçamento são
// ignoradas; as mais antigas são evictadas até caber.
func (cc *chunkCache) Add(id primitive.ObjectID, n int32, data []byte) {
	if cc == nil {
		return
	}
	cost := len(data) + cacheOverhead
	if cost > cc.size {
		return
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	key := chunkCacheKey{id: id, n: n}
	if cc.c.Contains(key) {
		return
	}
	cc.free -= cost
	for cc.free < 0 {
		if _, _, ok := cc.c.RemoveOldest(); !ok {
			break
		}
	}
	cc.c.Add(key, data)
}

// Get retorna o payload de um chunk, se presente.
func (cc *chunkCache) Get(id primitive.ObjectID, n int32) ([]byte, bool) {
	if cc == nil {
		return nil, false
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.c.Get(chunkCacheKey{id: id, n: n})
}

// Remove invalida a entrada de um chunk.
func (cc *chunkCache) Remove(id primitive.ObjectID, n int32) {
	if cc == nil {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.c.Remove(chunkCacheKey{id: id, n: n})
}

// RemoveFile invalida todas as entradas de um arquivo.
func (cc *chunkCache) RemoveFile(id primitive.ObjectID) {
	if cc == nil {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for _, key := range cc.c.Keys() {
		if key.id == id {
			cc.c.Remove(key)
		}
	}
}
