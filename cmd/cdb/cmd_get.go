// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cdbio/cdb"
)

var cmdGet = &cobra.Command{
	Use:   "get FILE KEY",
	Short: "Print the value stored under a key",
	Long: `
The "get" command looks up KEY and prints its value.  A key may have
several records; by default only the first-inserted one is printed.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet(args[0], args[1])
	},
}

var getOptions struct {
	All bool
}

func init() {
	cmdRoot.AddCommand(cmdGet)

	f := cmdGet.Flags()
	f.BoolVar(&getOptions.All, "all", false, "print every value stored under the key, in insertion order")
}

func runGet(path, key string) error {
	table, err := cdb.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = table.Close()
	}()

	w := bufio.NewWriter(os.Stdout)
	defer func() {
		_ = w.Flush()
	}()

	it := table.Find([]byte(key))
	found := false
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		found = true
		if _, err := w.Write(v); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		if !getOptions.All {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key %q not found", key)
	}
	return nil
}
