// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Erros de comandos server-side.
var (
	ErrCommandFailed = errors.New("client: command failed")
	ErrLastError     = errors.New("client: server reported operation error")
)

// RunCommand executa um comando contra <db>.$cmd e retorna o documento de
// resposta do servidor.
func (c *Connection) RunCommand(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error) {
	return c.FindOne(ctx, db+".$cmd", cmd, nil)
}

// SimpleIntCommand executa {name: arg} e retorna a resposta do servidor e o
// boolean ok. Falha de comando vira ok=false; erro de transporte propaga.
func (c *Connection) SimpleIntCommand(ctx context.Context, db, name string, arg int32) (bsoncore.Document, bool, error) {
	cmd := bsoncore.NewDocumentBuilder().AppendInt32(name, arg).Build()
	return c.runBoolCommand(ctx, db, cmd)
}

// SimpleStrCommand executa {name: arg} com argumento string.
func (c *Connection) SimpleStrCommand(ctx context.Context, db, name, arg string) (bsoncore.Document, bool, error) {
	cmd := bsoncore.NewDocumentBuilder().AppendString(name, arg).Build()
	return c.runBoolCommand(ctx, db, cmd)
}

func (c *Connection) runBoolCommand(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, bool, error) {
	out, err := c.RunCommand(ctx, db, cmd)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, lookupBool(out, "ok"), nil
}

// IsMaster consulta o papel do endpoint ativo via {ismaster:1}.
func (c *Connection) IsMaster(ctx context.Context) (bool, error) {
	out, ok, err := c.SimpleIntCommand(ctx, "admin", "ismaster", 1)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return lookupBool(out, "ismaster"), nil
}

// GetLastError roda {getlasterror:1}. Retorna a resposta do servidor para
// inspeção e erro nil sse o campo err veio null.
func (c *Connection) GetLastError(ctx context.Context, db string) (bsoncore.Document, error) {
	return c.getErrorCmd(ctx, db, "getlasterror")
}

// GetPrevError roda {getpreverror:1} com o mesmo contrato de GetLastError.
func (c *Connection) GetPrevError(ctx context.Context, db string) (bsoncore.Document, error) {
	return c.getErrorCmd(ctx, db, "getpreverror")
}

func (c *Connection) getErrorCmd(ctx context.Context, db, name string) (bsoncore.Document, error) {
	out, ok, err := c.SimpleIntCommand(ctx, db, name, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrCommandFailed, name)
	}
	val, lerr := out.LookupErr("err")
	if lerr != nil || val.Type != bsontype.Null {
		msg, _ := val.StringValueOK()
		return out, fmt.Errorf("%w: %s", ErrLastError, msg)
	}
	return out, nil
}

// ResetError limpa o estado de erro do servidor para o database.
func (c *Connection) ResetError(ctx context.Context, db string) error {
	_, _, err := c.SimpleIntCommand(ctx, db, "reseterror", 1)
	return err
}

// DropDatabase remove o database inteiro.
func (c *Connection) DropDatabase(ctx context.Context, db string) error {
	_, ok, err := c.SimpleIntCommand(ctx, db, "dropDatabase", 1)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: dropDatabase %s", ErrCommandFailed, db)
	}
	return nil
}

// DropCollection remove uma collection do database.
func (c *Connection) DropCollection(ctx context.Context, db, collection string) error {
	_, ok, err := c.SimpleStrCommand(ctx, db, "drop", collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: drop %s.%s", ErrCommandFailed, db, collection)
	}
	return nil
}

// Count conta documentos da collection casando com query (nil ou vazia conta
// todos). Retorna -1 com erro quando o comando falha.
func (c *Connection) Count(ctx context.Context, db, collection string, query bsoncore.Document) (int64, error) {
	builder := bsoncore.NewDocumentBuilder().AppendString("count", collection)
	if len(query) > 5 {
		builder.AppendDocument("query", query)
	}
	out, ok, err := c.runBoolCommand(ctx, db, builder.Build())
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, fmt.Errorf("%w: count %s.%s", ErrCommandFailed, db, collection)
	}
	n, _ := lookupInt64(out, "n")
	return n, nil
}

// lookupBool lê um campo com a coerção numérica usual do protocolo: boolean,
// ou qualquer numérico não-zero.
func lookupBool(doc bsoncore.Document, key string) bool {
	val, err := doc.LookupErr(key)
	if err != nil {
		return false
	}
	switch val.Type {
	case bsontype.Boolean:
		b, _ := val.BooleanOK()
		return b
	case bsontype.Double:
		d, _ := val.DoubleOK()
		return d != 0
	case bsontype.Int32:
		i, _ := val.Int32OK()
		return i != 0
	case bsontype.Int64:
		i, _ := val.Int64OK()
		return i != 0
	default:
		return false
	}
}

// lookupInt64 lê um campo numérico como int64.
func lookupInt64(doc bsoncore.Document, key string) (int64, bool) {
	val, err := doc.LookupErr(key)
	if err != nil {
		return 0, false
	}
	return val.AsInt64OK()
}

// lookupString lê um campo string.
func lookupString(doc bsoncore.Document, key string) (string, bool) {
	val, err := doc.LookupErr(key)
	if err != nil {
		return "", false
	}
	return val.StringValueOK()
}
