// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// ndocstore é a CLI do cliente: transfere arquivos de/para o store de
// objetos grandes e faz diagnóstico da conexão.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishisan-dev/n-docstore/internal/client"
	"github.com/nishisan-dev/n-docstore/internal/config"
	"github.com/nishisan-dev/n-docstore/internal/gridfs"
	"github.com/nishisan-dev/n-docstore/internal/logging"
)

var cmdRoot = &cobra.Command{
	Use:               "ndocstore",
	Short:             "Transfer files to and from an n-docstore server",
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

var globalOpts struct {
	Config string
}

func init() {
	cmdRoot.PersistentFlags().StringVar(&globalOpts.Config, "config", "/etc/ndocstore/client.yaml", "path to client config file")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app agrega o estado compartilhado pelos subcomandos: config carregada,
// logger e a conexão autenticada.
type app struct {
	cfg       *config.ClientConfig
	logger    *slog.Logger
	logCloser io.Closer
	conn      *client.Connection
}

// setup carrega a config, monta o logger e conecta (com failover e retry
// quando há secondary configurado).
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadClientConfig(globalOpts.Config)
	if err != nil {
		return nil, err
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)

	primary := &client.Options{
		Host:           cfg.Primary.Host,
		Port:           cfg.Primary.Port,
		ConnectTimeout: cfg.Timeouts.Connect(),
		OpTimeout:      cfg.Timeouts.Op(),
	}

	var conn *client.Connection
	if cfg.Secondary != nil {
		secondary := &client.Options{
			Host:           cfg.Secondary.Host,
			Port:           cfg.Secondary.Port,
			ConnectTimeout: cfg.Timeouts.Connect(),
			OpTimeout:      cfg.Timeouts.Op(),
		}
		conn, err = client.NewPair(primary, secondary, logging.ForComponent(logger, "client"))
		if err == nil {
			err = conn.ReconnectBackoff(ctx, client.RetryPolicy{
				MaxAttempts:     uint64(cfg.Retry.MaxAttempts),
				InitialInterval: cfg.Retry.InitialDelay,
			})
		}
	} else {
		conn, err = client.Dial(ctx, primary, logging.ForComponent(logger, "client"))
	}
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	if cfg.Auth != nil {
		if err := conn.Authenticate(ctx, cfg.Client.Database, cfg.Auth.User, cfg.Auth.Password); err != nil {
			conn.Close()
			logCloser.Close()
			return nil, err
		}
	}

	return &app{cfg: cfg, logger: logger, logCloser: logCloser, conn: conn}, nil
}

// close libera a conexão e o arquivo de log.
func (a *app) close() {
	a.conn.Close()
	a.logCloser.Close()
}

// store monta o gridfs.Store conforme a config (prefixo, chunk size,
// compressão e cache).
func (a *app) store(ctx context.Context) (*gridfs.Store, error) {
	var transform gridfs.ChunkTransform
	switch a.cfg.GridFS.Compression {
	case "zstd":
		t, err := gridfs.NewZstdTransform()
		if err != nil {
			return nil, err
		}
		transform = t
	case "gzip":
		transform = gridfs.GzipTransform{}
	}

	return gridfs.New(ctx, gridfs.Wrap(a.conn), a.cfg.Client.Database, gridfs.Config{
		Prefix:          a.cfg.GridFS.Prefix,
		ChunkSize:       int32(a.cfg.GridFS.ChunkSizeRaw),
		CaseInsensitive: a.cfg.GridFS.CaseInsensitive,
		Transform:       transform,
		CacheBytes:      int(a.cfg.GridFS.CacheSizeRaw),
	}, logging.ForComponent(a.logger, "gridfs"))
}
