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
)

var cmdGet = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a file from the store (stdout when local is omitted or \"-\")",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

func init() {
	cmdRoot.AddCommand(cmdGet)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	remote := args[0]
	local := "-"
	if len(args) == 2 {
		local = args[1]
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

	file, err := store.FindFilename(ctx, remote)
	if err != nil {
		return err
	}

	var dst io.Writer = os.Stdout
	if local != "-" {
		f, err := os.Create(local)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}

	written, err := file.WriteFile(ctx, dst)
	if err != nil {
		return err
	}
	if local != "-" {
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", written, local)
	}
	return nil
}
