// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cmdPing = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity and report the endpoint role",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	cmdRoot.AddCommand(cmdPing)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	master, err := app.conn.IsMaster(ctx)
	if err != nil {
		return err
	}

	role := "secondary"
	if master {
		role = "master"
	}
	fmt.Printf("%s is reachable (%s)\n", app.conn.Addr(), role)

	if _, err := app.conn.GetLastError(ctx, app.cfg.Client.Database); err != nil {
		return err
	}
	fmt.Println("getlasterror round-trip ok")
	return nil
}
