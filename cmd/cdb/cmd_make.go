// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cdbio/cdb"
)

var cmdMake = &cobra.Command{
	Use:   "make DEST [INPUT]",
	Short: "Build a database from records in cdbmake format",
	Long: `
The "make" command reads records in the cdbmake text format
(+klen,vlen:key->value, one per line, ending with a blank line) from
INPUT or standard input and builds the database DEST.  The database is
written to a temporary file first and renamed into place, so DEST is
never observed half-built.
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := ""
		if len(args) == 2 {
			input = args[1]
		}
		return runMake(args[0], input)
	},
}

func init() {
	cmdRoot.AddCommand(cmdMake)
}

func runMake(dest, input string) error {
	in := os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		in = f
	}
	r := bufio.NewReaderSize(in, 1<<20)

	builder, err := cdb.NewBuilder(dest)
	if err != nil {
		return err
	}

	count := uint64(0)
	for {
		key, value, done, err := readTextRecord(r)
		if err != nil {
			_ = builder.Abort()
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		if done {
			break
		}
		if err := builder.Put(key, value); err != nil {
			_ = builder.Abort()
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		count++
		if count%1000000 == 0 {
			logrus.WithField("records", count).Debug("still building")
		}
	}

	if err := builder.Finalize(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"path":    dest,
		"records": count,
	}).Info("database built")
	return nil
}
