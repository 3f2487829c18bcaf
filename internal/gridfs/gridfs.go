// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package gridfs implementa o store de objetos grandes em cima de duas
// collections: <db>.<prefix>.files guarda um documento de metadados por
// arquivo lógico e <db>.<prefix>.chunks guarda os pedaços binários de
// tamanho fixo, chaveados por (files_id, n).
package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// DefaultChunkSize é o tamanho padrão de um chunk.
const DefaultChunkSize = 256 * 1024

// DefaultPrefix é o prefixo padrão das collections do store.
const DefaultPrefix = "fs"

// Flags de arquivo, persistidos no documento de metadados e repassados ao
// transform de chunks.
const (
	FlagDefault  int32 = 0
	FlagNoMD5    int32 = 1 << 0
	FlagCompress int32 = 1 << 1
	FlagEncrypt  int32 = 1 << 2
)

// Erros do store.
var (
	ErrNotFound     = errors.New("gridfs: file not found")
	ErrMissingChunk = errors.New("gridfs: chunk missing on server")
	ErrReadOnly     = errors.New("gridfs: file not opened for writing")
)

// Cursor é a iteração mínima que o store precisa de um resultado de find.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() bsoncore.Document
	Err() error
	Close(ctx context.Context) error
}

// Conn é o contrato do store com a conexão. Upserts são a base das escritas
// de chunk: retry parcial de um chunk é idempotente.
type Conn interface {
	Insert(ctx context.Context, ns string, docs ...bsoncore.Document) error
	Upsert(ctx context.Context, ns string, selector, update bsoncore.Document) error
	Remove(ctx context.Context, ns string, selector bsoncore.Document) error
	FindOne(ctx context.Context, ns string, query, fields bsoncore.Document) (bsoncore.Document, error)
	Find(ctx context.Context, ns string, query, fields bsoncore.Document, nToReturn, nToSkip int32) (Cursor, error)
	RunCommand(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error)
	EnsureIndex(ctx context.Context, ns string, key bsoncore.Document, unique bool) error
}

// ErrDocNotFound deve ser retornado (embrulhado) por FindOne quando não há
// documento casando; o store o traduz em ErrNotFound/ErrMissingChunk.
var ErrDocNotFound = errors.New("gridfs: no matching document")

// Config parametriza um Store. O zero value usa os defaults.
type Config struct {
	// Prefix das collections (default "fs").
	Prefix string
	// ChunkSize em bytes (default DefaultChunkSize).
	ChunkSize int32
	// CaseInsensitive ativa lookup de filename sem distinção de caixa:
	// filename guarda a chave em maiúsculas e realFilename o nome original.
	CaseInsensitive bool
	// Transform aplicado a cada chunk na escrita (Pre) e leitura (Post).
	// Nil usa a identidade.
	Transform ChunkTransform
	// CacheBytes dimensiona o cache LRU de chunks lidos. Zero desabilita.
	CacheBytes int
}

// Store é o ponto de entrada do armazenamento de objetos grandes.
type Store struct {
	conn            Conn
	db              string
	prefix          string
	filesNS         string
	chunksNS        string
	chunkSize       int32
	caseInsensitive bool
	transform       ChunkTransform
	cache           *chunkCache
	logger          *slog.Logger
}

// New cria o store e garante os índices exigidos: {filename:1} em .files e
// o único {files_id:1, n:1} em .chunks.
func New(ctx context.Context, conn Conn, db string, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	transform := cfg.Transform
	if transform == nil {
		transform = IdentityTransform{}
	}

	s := &Store{
		conn:            conn,
		db:              db,
		prefix:          prefix,
		filesNS:         db + "." + prefix + ".files",
		chunksNS:        db + "." + prefix + ".chunks",
		chunkSize:       chunkSize,
		caseInsensitive: cfg.CaseInsensitive,
		transform:       transform,
		cache:           newChunkCache(cfg.CacheBytes),
		logger:          logger,
	}

	filenameKey := bsoncore.NewDocumentBuilder().AppendInt32("filename", 1).Build()
	if err := conn.EnsureIndex(ctx, s.filesNS, filenameKey, false); err != nil {
		return nil, fmt.Errorf("gridfs: ensuring files index: %w", err)
	}
	chunkKey := bsoncore.NewDocumentBuilder().
		AppendInt32("files_id", 1).
		AppendInt32("n", 1).
		Build()
	if err := conn.EnsureIndex(ctx, s.chunksNS, chunkKey, true); err != nil {
		return nil, fmt.Errorf("gridfs: ensuring chunks index: %w", err)
	}

	logger.Info("gridfs store initialized",
		"files_ns", s.filesNS,
		"chunks_ns", s.chunksNS,
		"chunk_size", chunkSize,
		"case_insensitive", cfg.CaseInsensitive,
	)
	return s, nil
}

// ChunkSize retorna o tamanho de chunk configurado.
func (s *Store) ChunkSize() int32 {
	return s.chunkSize
}

// FilesNamespace retorna o namespace da collection de metadados.
func (s *Store) FilesNamespace() string {
	return s.filesNS
}

// ChunksNamespace retorna o namespace da collection de chunks.
func (s *Store) ChunksNamespace() string {
	return s.chunksNS
}

// filenameKey aplica a política de caixa ao nome consultado/gravado.
func (s *Store) filenameKey(name string) string {
	if s.caseInsensitive {
		return strings.ToUpper(name)
	}
	return name
}

// newChunkDoc monta o documento de um chunk.
func newChunkDoc(id primitive.ObjectID, n int32, data []byte) bsoncore.Document {
	return bsoncore.NewDocumentBuilder().
		AppendObjectID("files_id", id).
		AppendInt32("n", n).
		AppendBinary("data", 0x00, data).
		Build()
}

// chunkSelector monta o selector de upsert de um chunk.
func chunkSelector(id primitive.ObjectID, n int32) bsoncore.Document {
	return bsoncore.NewDocumentBuilder().
		AppendInt32("n", n).
		AppendObjectID("files_id", id).
		Build()
}

// writeChunk aplica o transform e faz o upsert de um chunk, invalidando a
// entrada correspondente do cache.
func (s *Store) writeChunk(ctx context.Context, id primitive.ObjectID, n int32, data []byte, flags int32) error {
	encoded, err := s.transform.Pre(data, flags)
	if err != nil {
		return fmt.Errorf("gridfs: chunk transform: %w", err)
	}
	if err := s.conn.Upsert(ctx, s.chunksNS, chunkSelector(id, n), newChunkDoc(id, n, encoded)); err != nil {
		return err
	}
	s.cache.Remove(id, n)
	return nil
}

// insertChunk aplica o transform e insere um chunk sequencial (store path).
func (s *Store) insertChunk(ctx context.Context, id primitive.ObjectID, n int32, data []byte, flags int32) error {
	encoded, err := s.transform.Pre(data, flags)
	if err != nil {
		return fmt.Errorf("gridfs: chunk transform: %w", err)
	}
	return s.conn.Insert(ctx, s.chunksNS, newChunkDoc(id, n, encoded))
}

// insertFile faz o upsert do documento de metadados de um arquivo. Quando o
// flag NoMD5 não está presente, roda o comando server-side filemd5 antes.
func (s *Store) insertFile(ctx context.Context, name string, id primitive.ObjectID, length int64, contentType string, flags int32) error {
	md5sum := ""
	if flags&FlagNoMD5 == 0 {
		cmd := bsoncore.NewDocumentBuilder().
			AppendObjectID("filemd5", id).
			AppendString("root", s.prefix).
			Build()
		res, err := s.conn.RunCommand(ctx, s.db, cmd)
		if err != nil {
			return fmt.Errorf("gridfs: filemd5: %w", err)
		}
		md5sum, _ = lookupString(res, "md5")
	}

	builder := bsoncore.NewDocumentBuilder().AppendObjectID("_id", id)
	if name != "" {
		builder.AppendString("filename", s.filenameKey(name))
	}
	builder.AppendInt64("length", length)
	builder.AppendInt32("chunkSize", s.chunkSize)
	builder.AppendDateTime("uploadDate", time.Now().UnixMilli())
	builder.AppendString("md5", md5sum)
	if contentType != "" {
		builder.AppendString("contentType", contentType)
	}
	if s.caseInsensitive && name != "" {
		builder.AppendString("realFilename", name)
	}
	builder.AppendInt32("flags", flags)

	selector := bsoncore.NewDocumentBuilder().AppendObjectID("_id", id).Build()
	return s.conn.Upsert(ctx, s.filesNS, selector, builder.Build())
}

// StoreBuffer grava data como um novo arquivo, chunk a chunk, e então o
// documento de metadados. Retorna o id gerado.
func (s *Store) StoreBuffer(ctx context.Context, data []byte, remoteName, contentType string, flags int32) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	chunkSize := int(s.chunkSize)

	var n int32
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.insertChunk(ctx, id, n, data[off:end], flags); err != nil {
			return id, err
		}
		n++
	}

	return id, s.insertFile(ctx, remoteName, id, int64(len(data)), contentType, flags)
}

// StoreFile grava o conteúdo de um arquivo local ("-" lê de stdin).
// remoteName vazio usa o próprio path.
func (s *Store) StoreFile(ctx context.Context, path, remoteName, contentType string, flags int32) (primitive.ObjectID, error) {
	var src io.Reader
	if path == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("gridfs: opening %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}
	if remoteName == "" {
		remoteName = path
	}

	id := primitive.NewObjectID()
	buf := make([]byte, s.chunkSize)
	var length int64
	var n int32
	for {
		read, err := io.ReadFull(src, buf)
		if read > 0 {
			if cerr := s.insertChunk(ctx, id, n, buf[:read], flags); cerr != nil {
				return id, cerr
			}
			length += int64(read)
			n++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return id, fmt.Errorf("gridfs: reading %s: %w", path, err)
		}
	}

	return id, s.insertFile(ctx, remoteName, id, length, contentType, flags)
}

// FindQuery localiza o arquivo mais recente casando com query (ordenado por
// uploadDate decrescente). Sem resultado retorna ErrNotFound.
func (s *Store) FindQuery(ctx context.Context, query bsoncore.Document) (*File, error) {
	orderby := bsoncore.NewDocumentBuilder().AppendInt32("uploadDate", -1).Build()
	wrapped := bsoncore.NewDocumentBuilder().
		AppendDocument("query", query).
		AppendDocument("orderby", orderby).
		Build()

	meta, err := s.conn.FindOne(ctx, s.filesNS, wrapped, nil)
	if err != nil {
		if errors.Is(err, ErrDocNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return newFileFromMeta(s, meta), nil
}

// FindFilename localiza um arquivo pelo nome, respeitando a política de
// caixa do store.
func (s *Store) FindFilename(ctx context.Context, name string) (*File, error) {
	query := bsoncore.NewDocumentBuilder().
		AppendString("filename", s.filenameKey(name)).
		Build()
	return s.FindQuery(ctx, query)
}

// Exists informa se há um arquivo com o nome dado.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.FindFilename(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFilename remove todos os arquivos com o nome dado: para cada id
// casando, o documento de metadados e todos os seus chunks.
func (s *Store) RemoveFilename(ctx context.Context, name string) error {
	query := bsoncore.NewDocumentBuilder().
		AppendString("filename", s.filenameKey(name)).
		Build()
	cursor, err := s.conn.Find(ctx, s.filesNS, query, nil, 0, 0)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		val, lerr := cursor.Current().LookupErr("_id")
		if lerr != nil {
			continue
		}
		id, ok := val.ObjectIDOK()
		if !ok {
			continue
		}

		fileSel := bsoncore.NewDocumentBuilder().AppendObjectID("_id", id).Build()
		if err := s.conn.Remove(ctx, s.filesNS, fileSel); err != nil {
			return err
		}
		chunkSel := bsoncore.NewDocumentBuilder().AppendObjectID("files_id", id).Build()
		if err := s.conn.Remove(ctx, s.chunksNS, chunkSel); err != nil {
			return err
		}
		s.cache.RemoveFile(id)
		s.logger.Debug("removed file", "filename", name, "files_id", id.Hex())
	}
	return cursor.Err()
}

// ListFiles retorna um cursor sobre os documentos de metadados de todos os
// arquivos do store.
func (s *Store) ListFiles(ctx context.Context) (Cursor, error) {
	return s.conn.Find(ctx, s.filesNS, bsoncore.NewDocumentBuilder().Build(), nil, 0, 0)
}

// lookupString lê um campo string de um documento.
func lookupString(doc bsoncore.Document, key string) (string, bool) {
	val, err := doc.LookupErr(key)
	if err != nil {
		return "", false
	}
	return val.StringValueOK()
}
