// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// File é a visão de um arquivo lógico do store: metadados mais o estado de
// leitura/escrita posicional. No modo writer carrega o pending chunk, um
// buffer de um único chunk que funde escritas parciais antes de um upsert.
type File struct {
	store *Store
	meta  bsoncore.Document

	id     primitive.ObjectID
	pos    int64
	length int64
	flags  int32

	// Estado do writer.
	writable    bool
	chunkNum    int32
	pending     []byte
	pendingLen  int
	remoteName  string
	contentType string
}

// newFileFromMeta constrói a visão de leitura a partir do documento de
// metadados.
func newFileFromMeta(s *Store, meta bsoncore.Document) *File {
	f := &File{store: s, meta: meta}
	if val, err := meta.LookupErr("_id"); err == nil {
		if id, ok := val.ObjectIDOK(); ok {
			f.id = id
		}
	}
	if val, err := meta.LookupErr("length"); err == nil {
		f.length, _ = val.AsInt64OK()
	}
	if val, err := meta.LookupErr("flags"); err == nil {
		if v, ok := val.Int32OK(); ok {
			f.flags = v
		}
	}
	return f
}

// Exists informa se o arquivo tem metadados presentes no servidor.
func (f *File) Exists() bool {
	return f != nil && f.meta != nil
}

// ID retorna o id do arquivo.
func (f *File) ID() primitive.ObjectID {
	return f.id
}

// Filename retorna o nome original do arquivo. No modo case-insensitive o
// nome real vem de realFilename; filename guarda a chave em maiúsculas.
func (f *File) Filename() string {
	if f.store.caseInsensitive {
		if name, ok := lookupString(f.meta, "realFilename"); ok {
			return name
		}
	}
	if name, ok := lookupString(f.meta, "filename"); ok {
		return name
	}
	return f.remoteName
}

// Length retorna o tamanho corrente do arquivo em bytes. No modo writer só é
// exato após um flush (Seek, Read, Truncate e CloseWriter flusham).
func (f *File) Length() int64 {
	return f.length
}

// ChunkSize retorna o tamanho de chunk do arquivo.
func (f *File) ChunkSize() int32 {
	if f.meta != nil {
		if val, err := f.meta.LookupErr("chunkSize"); err == nil {
			if v, ok := val.Int32OK(); ok && v > 0 {
				return v
			}
		}
	}
	return f.store.chunkSize
}

// NumChunks retorna ⌈length/chunkSize⌉. Um arquivo alinhado exatamente no
// tamanho de chunk não tem chunk vazio final.
func (f *File) NumChunks() int64 {
	cs := int64(f.ChunkSize())
	return (f.length + cs - 1) / cs
}

// UploadDate retorna a data de upload registrada nos metadados.
func (f *File) UploadDate() time.Time {
	if f.meta != nil {
		if val, err := f.meta.LookupErr("uploadDate"); err == nil {
			if ms, ok := val.DateTimeOK(); ok {
				return time.UnixMilli(ms)
			}
		}
	}
	return time.Time{}
}

// MD5 retorna o hash registrado nos metadados (vazio com FlagNoMD5).
func (f *File) MD5() string {
	sum, _ := lookupString(f.meta, "md5")
	return sum
}

// ContentType retorna o content type registrado, se houver.
func (f *File) ContentType() string {
	if ct, ok := lookupString(f.meta, "contentType"); ok {
		return ct
	}
	return f.contentType
}

// Flags retorna os flags do arquivo.
func (f *File) Flags() int32 {
	return f.flags
}

// SetFlags substitui os flags correntes (repassados ao transform).
func (f *File) SetFlags(flags int32) {
	f.flags = flags
}

// Field retorna um campo arbitrário dos metadados.
func (f *File) Field(name string) (bsoncore.Value, bool) {
	if f.meta == nil {
		return bsoncore.Value{}, false
	}
	val, err := f.meta.LookupErr(name)
	return val, err == nil
}

// Boolean retorna um campo booleano dos metadados.
func (f *File) Boolean(name string) bool {
	val, ok := f.Field(name)
	if !ok || val.Type != bsontype.Boolean {
		return false
	}
	b, _ := val.BooleanOK()
	return b
}

// Metadata retorna o sub-documento metadata, ou um documento vazio.
func (f *File) Metadata() bsoncore.Document {
	if val, ok := f.Field("metadata"); ok {
		if doc, docOK := val.DocumentOK(); docOK {
			return doc
		}
	}
	return bsoncore.NewDocumentBuilder().Build()
}

// Descriptor retorna o documento de metadados bruto.
func (f *File) Descriptor() bsoncore.Document {
	return f.meta
}

// Pos retorna a posição corrente de leitura/escrita.
func (f *File) Pos() int64 {
	return f.pos
}

// GetChunk busca o chunk n e retorna os bytes já pós-processados pelo
// transform. Alimenta e consulta o cache de chunks quando habilitado.
func (f *File) GetChunk(ctx context.Context, n int32) ([]byte, error) {
	if data, ok := f.store.cache.Get(f.id, n); ok {
		return data, nil
	}

	query := bsoncore.NewDocumentBuilder().
		AppendObjectID("files_id", f.id).
		AppendInt32("n", n).
		Build()
	doc, err := f.store.conn.FindOne(ctx, f.store.chunksNS, query, nil)
	if err != nil {
		if errors.Is(err, ErrDocNotFound) {
			return nil, fmt.Errorf("%w: files_id %s n %d", ErrMissingChunk, f.id.Hex(), n)
		}
		return nil, err
	}
	return f.decodeChunk(doc, n)
}

// decodeChunk extrai o payload binário de um documento de chunk e aplica o
// transform de leitura.
func (f *File) decodeChunk(doc bsoncore.Document, n int32) ([]byte, error) {
	val, err := doc.LookupErr("data")
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d has no data field", ErrMissingChunk, n)
	}
	_, raw, ok := val.BinaryOK()
	if !ok {
		return nil, fmt.Errorf("%w: chunk %d data is not binary", ErrMissingChunk, n)
	}
	data, err := f.store.transform.Post(raw, f.flags)
	if err != nil {
		return nil, fmt.Errorf("gridfs: chunk transform: %w", err)
	}
	f.store.cache.Add(f.id, n, data)
	return data, nil
}

// GetChunks retorna um cursor sobre os chunks [start, start+total), em ordem
// ascendente de n.
func (f *File) GetChunks(ctx context.Context, start, total int32) (Cursor, error) {
	query := bsoncore.NewDocumentBuilder().AppendObjectID("files_id", f.id)
	if total == 1 {
		query.AppendInt32("n", start)
	} else {
		gte := bsoncore.NewDocumentBuilder().AppendInt32("$gte", start).Build()
		query.AppendDocument("n", gte)
	}
	orderby := bsoncore.NewDocumentBuilder().AppendInt32("n", 1).Build()
	wrapped := bsoncore.NewDocumentBuilder().
		AppendDocument("query", query.Build()).
		AppendDocument("orderby", orderby).
		Build()

	return f.store.conn.Find(ctx, f.store.chunksNS, wrapped, nil, total, 0)
}

// Read lê até len(p) bytes a partir da posição corrente, atravessando os
// chunks cobertos em uma única consulta ordenada. Implementa a semântica de
// io.Reader; em fim de arquivo retorna 0, io.EOF.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if err := f.flushPending(ctx); err != nil {
		return 0, err
	}

	size := int64(len(p))
	if remaining := f.length - f.pos; size > remaining {
		size = remaining
	}
	if size <= 0 {
		return 0, io.EOF
	}

	cs := int64(f.ChunkSize())
	firstChunk := f.pos / cs
	lastChunk := (f.pos + size - 1) / cs
	totalChunks := int32(lastChunk - firstChunk + 1)

	cursor, err := f.GetChunks(ctx, int32(firstChunk), totalChunks)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	copied := 0
	skip := int(f.pos % cs)
	for i := int32(0); i < totalChunks; i++ {
		if !cursor.Next(ctx) {
			break
		}
		n := int32(firstChunk) + i
		data, err := f.decodeChunk(cursor.Current(), n)
		if err != nil {
			return copied, err
		}
		if i == 0 {
			if skip >= len(data) {
				data = nil
			} else {
				data = data[skip:]
			}
		}
		want := int(size) - copied
		if want < len(data) {
			data = data[:want]
		}
		copy(p[copied:], data)
		copied += len(data)
		if copied >= int(size) {
			break
		}
	}
	if err := cursor.Err(); err != nil && copied < int(size) {
		return copied, err
	}

	f.pos += int64(copied)
	return copied, nil
}

// Seek reposiciona o ponteiro de leitura/escrita, flushando o pending chunk
// quando o destino sai da posição corrente. O offset é limitado ao tamanho
// do arquivo.
func (f *File) Seek(ctx context.Context, offset int64) (int64, error) {
	if f.pendingLen > 0 && offset != f.pos {
		if err := f.flushPending(ctx); err != nil {
			return f.pos, err
		}
	}
	if offset > f.length {
		offset = f.length
	}
	if offset < 0 {
		offset = 0
	}
	f.pos = offset
	return f.pos, nil
}

// WriteFile despeja o conteúdo inteiro do arquivo em w, chunk a chunk.
func (f *File) WriteFile(ctx context.Context, w io.Writer) (int64, error) {
	if err := f.flushPending(ctx); err != nil {
		return 0, err
	}
	var written int64
	num := f.NumChunks()
	for n := int64(0); n < num; n++ {
		data, err := f.GetChunk(ctx, int32(n))
		if err != nil {
			return written, err
		}
		wn, err := w.Write(data)
		written += int64(wn)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// removeChunks remove os chunks com n >= deleteFrom; deleteFrom negativo
// remove todos.
func (f *File) removeChunks(ctx context.Context, deleteFrom int32) error {
	query := bsoncore.NewDocumentBuilder().AppendObjectID("files_id", f.id)
	if deleteFrom >= 0 {
		gte := bsoncore.NewDocumentBuilder().AppendInt32("$gte", deleteFrom).Build()
		query.AppendDocument("n", gte)
	}
	if err := f.store.conn.Remove(ctx, f.store.chunksNS, query.Build()); err != nil {
		return err
	}
	f.store.cache.RemoveFile(f.id)
	return nil
}

// Truncate reduz o arquivo para newSize bytes. Encolher para um tamanho não
// alinhado reescreve o chunk de borda truncado; os chunks seguintes são
// removidos. newSize zero remove todos os chunks.
func (f *File) Truncate(ctx context.Context, newSize int64) (int64, error) {
	if err := f.flushPending(ctx); err != nil {
		return f.length, err
	}
	if newSize < 0 {
		newSize = 0
	}
	if newSize >= f.length {
		return f.Seek(ctx, f.length)
	}

	if newSize == 0 {
		if err := f.removeChunks(ctx, -1); err != nil {
			return f.length, err
		}
		f.length = 0
		f.pos = 0
		return 0, nil
	}

	cs := int64(f.ChunkSize())
	deleteFrom := int32(newSize / cs)
	if _, err := f.Seek(ctx, newSize); err != nil {
		return f.length, err
	}
	if f.pos%cs != 0 {
		if err := f.loadPendingChunk(ctx); err != nil {
			return f.length, err
		}
		f.pendingLen = int(f.pos % cs)
		if err := f.flushPending(ctx); err != nil {
			return f.length, err
		}
		deleteFrom++
	}
	if err := f.removeChunks(ctx, deleteFrom); err != nil {
		return f.length, err
	}
	f.length = newSize
	return f.length, nil
}
