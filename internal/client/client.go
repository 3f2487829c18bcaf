// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package client implementa a conexão com o servidor de documentos: dial
// síncrono com timeouts, par primário/secundário com failover, modo assíncrono
// pipelined dirigido por event loop externo, cursores de streaming e os
// helpers de comando ($cmd, auth, índices).
package client

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Erros da conexão e das operações.
var (
	ErrNoSocket     = errors.New("client: could not create socket")
	ErrConnFail     = errors.New("client: connection failed")
	ErrBadArg       = errors.New("client: bad connection arguments")
	ErrNotMaster    = errors.New("client: endpoint reachable but not master")
	ErrNotConnected = errors.New("client: not connected")
	ErrIO           = errors.New("client: network i/o error")
	ErrReadTimeout  = errors.New("client: operation timed out")
	ErrNotFound     = errors.New("client: no matching document")
	ErrReplyPending = errors.New("client: async reply not fully buffered")
)

// Timeouts default, em linha com o comportamento do servidor.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultOpTimeout      = 30 * time.Second
)

// Options descreve um endpoint e os timeouts da conexão.
type Options struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
}

// DefaultOptions retorna as opções para um servidor local na porta padrão.
func DefaultOptions() *Options {
	return &Options{
		Host:           "127.0.0.1",
		Port:           27017,
		ConnectTimeout: DefaultConnectTimeout,
		OpTimeout:      DefaultOpTimeout,
	}
}

// Addr retorna o endereço host:port do endpoint.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// withDefaults preenche campos zerados com os defaults.
func (o *Options) withDefaults() *Options {
	out := *o
	if out.Host == "" {
		out.Host = "127.0.0.1"
	}
	if out.Port == 0 {
		out.Port = 27017
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = DefaultConnectTimeout
	}
	if out.OpTimeout <= 0 {
		out.OpTimeout = DefaultOpTimeout
	}
	return &out
}
