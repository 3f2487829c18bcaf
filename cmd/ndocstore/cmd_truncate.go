// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nishisan-dev/n-docstore/internal/gridfs"
)

var cmdTruncate = &cobra.Command{
	Use:   "truncate <remote> <size>",
	Short: "Truncate a stored file to the given size in bytes",
	Args:  cobra.ExactArgs(2),
	RunE:  runTruncate,
}

func init() {
	cmdRoot.AddCommand(cmdTruncate)
}

func runTruncate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	size, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[1], err)
	}

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	store, err := app.store(ctx)
	if err != nil {
		return err
	}

	// O writer adota id, tamanho e flags do arquivo existente; o close
	// regrava o documento de metadados com o novo tamanho.
	file, err := store.OpenWriter(ctx, args[0], "", gridfs.FlagDefault)
	if err != nil {
		return err
	}
	newLength, err := file.Truncate(ctx, size)
	if err != nil {
		return err
	}
	if err := file.CloseWriter(ctx); err != nil {
		return err
	}
	fmt.Printf("truncated %s to %d bytes\n", args[0], newLength)
	return nil
}
