// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var cmdLs = &cobra.Command{
	Use:   "ls",
	Short: "List files stored on the server",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

func init() {
	cmdRoot.AddCommand(cmdLs)
}

func runLs(cmd *cobra.Command, args []string) error {
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

	cursor, err := store.ListFiles(ctx)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLENGTH\tUPLOADED\tMD5")
	for cursor.Next(ctx) {
		doc := cursor.Current()
		name, _ := doc.LookupErr("filename")
		length, _ := doc.LookupErr("length")
		uploaded, _ := doc.LookupErr("uploadDate")
		md5sum, _ := doc.LookupErr("md5")

		nameStr, _ := name.StringValueOK()
		lengthVal, _ := length.AsInt64OK()
		md5Str, _ := md5sum.StringValueOK()
		uploadedStr := ""
		if ms, ok := uploaded.DateTimeOK(); ok {
			uploadedStr = time.UnixMilli(ms).Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", nameStr, lengthVal, uploadedStr, md5Str)
	}
	if err := cursor.Err(); err != nil {
		return err
	}
	return w.Flush()
}
