// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/cdbio/cdb"
)

var cmdShell = &cobra.Command{
	Use:   "shell FILE",
	Short: "Query a database interactively",
	Long: `
The "shell" command opens a database and reads queries from standard
input.  Arguments are parsed with shell quoting rules, so keys
containing spaces can be written as "such keys".

Commands: get KEY, getall KEY, exists KEY, count, list [N], help, exit.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(args[0])
	},
}

func init() {
	cmdRoot.AddCommand(cmdShell)
}

const shellHelp = `commands:
  get KEY      print the first value stored under KEY
  getall KEY   print every value stored under KEY, in insertion order
  exists KEY   report whether KEY is present
  count        print the number of records
  list [N]     print the first N record keys (default 20)
  help         show this help
  exit         quit`

func runShell(path string) error {
	table, err := cdb.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = table.Close()
	}()

	fmt.Printf("opened %s; 'help' for commands, 'exit' to quit\n", path)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("cdb> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		words, err := shellquote.Split(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println(shellHelp)
		case "get":
			if len(words) != 2 {
				fmt.Println("usage: get KEY")
				continue
			}
			v, found, err := table.GetString(words[1])
			switch {
			case err != nil:
				fmt.Println("error:", err)
			case !found:
				fmt.Println("(not found)")
			default:
				fmt.Printf("%s\n", v)
			}
		case "getall":
			if len(words) != 2 {
				fmt.Println("usage: getall KEY")
				continue
			}
			values, err := table.GetAll([]byte(words[1]))
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if len(values) == 0 {
				fmt.Println("(not found)")
				continue
			}
			for _, v := range values {
				fmt.Printf("%s\n", v)
			}
		case "exists":
			if len(words) != 2 {
				fmt.Println("usage: exists KEY")
				continue
			}
			_, found, err := table.GetString(words[1])
			switch {
			case err != nil:
				fmt.Println("error:", err)
			case found:
				fmt.Println("yes")
			default:
				fmt.Println("no")
			}
		case "count":
			n, err := countRecords(table)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(n)
		case "list":
			limit := 20
			if len(words) == 2 {
				limit, err = strconv.Atoi(words[1])
				if err != nil || limit < 0 {
					fmt.Println("usage: list [N]")
					continue
				}
			}
			it := table.Iter()
			for i := 0; i < limit; i++ {
				rec, ok := it.Next()
				if !ok {
					break
				}
				fmt.Printf("%q\n", rec.Key)
			}
			if err := it.Err(); err != nil {
				fmt.Println("error:", err)
			}
		default:
			fmt.Printf("unknown command %q; 'help' for commands\n", words[0])
		}
	}
}

func countRecords(table *cdb.Table) (uint64, error) {
	n := uint64(0)
	it := table.Iter()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	return n, it.Err()
}
