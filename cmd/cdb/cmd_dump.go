// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/cdbio/cdb"
)

var cmdDump = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print every record in cdbmake format",
	Long: `
The "dump" command scans all records of a database in insertion order
and prints them in the cdbmake text format, so

	cdb dump old.cdb | cdb make new.cdb

rebuilds an equivalent database.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(args[0])
	},
}

func init() {
	cmdRoot.AddCommand(cmdDump)
}

func runDump(path string) error {
	table, err := cdb.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = table.Close()
	}()

	w := bufio.NewWriterSize(os.Stdout, 1<<20)
	it := table.Iter()
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		if err := writeTextRecord(w, rec.Key, rec.Value); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
