// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/nishisan-dev/n-docstore/internal/wire"
)

// ErrAuthFailed indica credenciais rejeitadas ou handshake de nonce quebrado.
var ErrAuthFailed = errors.New("client: authentication failed")

// passDigest calcula o digest de senha do protocolo:
// hex(md5(user + ":mongo:" + pass)), 32 chars minúsculos.
func passDigest(user, pass string) string {
	sum := md5.Sum([]byte(user + ":mongo:" + pass))
	return hex.EncodeToString(sum[:])
}

// Authenticate executa o challenge/response de login: pede um nonce ao
// servidor, deriva key = hex(md5(nonce + user + passDigest)) e envia o
// comando authenticate.
func (c *Connection) Authenticate(ctx context.Context, db, user, pass string) error {
	out, ok, err := c.SimpleIntCommand(ctx, db, "getnonce", 1)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: getnonce refused", ErrAuthFailed)
	}
	nonce, found := lookupString(out, "nonce")
	if !found {
		return fmt.Errorf("%w: server sent no nonce", ErrAuthFailed)
	}

	digest := passDigest(user, pass)
	keySum := md5.Sum([]byte(nonce + user + digest))
	key := hex.EncodeToString(keySum[:])

	cmd := bsoncore.NewDocumentBuilder().
		AppendInt32("authenticate", 1).
		AppendString("user", user).
		AppendString("nonce", nonce).
		AppendString("key", key).
		Build()

	res, err := c.RunCommand(ctx, db, cmd)
	if err != nil {
		return err
	}
	if !lookupBool(res, "ok") {
		return fmt.Errorf("%w: user %q on %s", ErrAuthFailed, user, db)
	}
	return nil
}

// AddUser grava (upsert) as credenciais em <db>.system.users.
func (c *Connection) AddUser(ctx context.Context, db, user, pass string) error {
	selector := bsoncore.NewDocumentBuilder().AppendString("user", user).Build()
	update := bsoncore.NewDocumentBuilder().
		AppendDocument("$set", bsoncore.NewDocumentBuilder().
			AppendString("pwd", passDigest(user, pass)).
			Build()).
		Build()
	return c.Update(ctx, db+".system.users", selector, update, wire.UpdateUpsert)
}
