// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishisan-dev/n-docstore/internal/config"
	"github.com/nishisan-dev/n-docstore/internal/gridfs"
)

var cmdPut = &cobra.Command{
	Use:   "put [flags] <local> <remote>",
	Short: "Upload a local file (\"-\" reads stdin) into the store",
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

type putOptions struct {
	ContentType string
	Compress    bool
	NoMD5       bool
	Limit       string
}

var putOpts putOptions

func init() {
	cmdRoot.AddCommand(cmdPut)
	fs := cmdPut.Flags()
	fs.StringVar(&putOpts.ContentType, "content-type", "", "content type recorded in the file metadata")
	fs.BoolVar(&putOpts.Compress, "compress", false, "store chunks compressed (requires gridfs.compression in the config)")
	fs.BoolVar(&putOpts.NoMD5, "no-md5", false, "skip the server-side md5 checksum")
	fs.StringVar(&putOpts.Limit, "limit", "", "upload bandwidth limit per second (e.g. 512kb)")
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	local, remote := args[0], args[1]

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	store, err := app.store(ctx)
	if err != nil {
		return err
	}

	var flags int32 = gridfs.FlagDefault
	if putOpts.Compress {
		flags |= gridfs.FlagCompress
	}
	if putOpts.NoMD5 {
		flags |= gridfs.FlagNoMD5
	}

	// Sem limite de banda o caminho sequencial de StoreFile basta; com
	// limite, o upload passa pelo writer posicional embrulhado no throttle.
	if putOpts.Limit == "" {
		id, err := store.StoreFile(ctx, local, remote, putOpts.ContentType, flags)
		if err != nil {
			return err
		}
		fmt.Printf("stored %s as %s (id %s)\n", local, remote, id.Hex())
		return nil
	}

	limit, err := config.ParseByteSize(putOpts.Limit)
	if err != nil {
		return fmt.Errorf("--limit: %w", err)
	}

	var src io.Reader
	if local == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(local)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	file, err := store.OpenWriter(ctx, remote, putOpts.ContentType, flags)
	if err != nil {
		return err
	}
	w := gridfs.NewThrottledWriter(ctx, file.IOWriter(ctx), limit)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	if err := file.CloseWriter(ctx); err != nil {
		return err
	}
	fmt.Printf("stored %s as %s (id %s)\n", local, remote, file.ID().Hex())
	return nil
}
