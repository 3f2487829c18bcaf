// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cmdRm = &cobra.Command{
	Use:   "rm <remote>",
	Short: "Remove a file and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	cmdRoot.AddCommand(cmdRm)
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	store, err := app.store(ctx)
	if err != nil {
		return err
	}

	if err := store.RemoveFilename(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}
