// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lemon4ksan/zipseek"
)

func init() {
	var argLong bool
	cmd := &cobra.Command{
		Use:   "list [flags] ARCHIVE",
		Short: "List the entries of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(flags *cobra.Command, args []string) error {
			archive, err := zipseek.Open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			if !argLong {
				for _, name := range archive.Names() {
					fmt.Fprintln(flags.OutOrStdout(), name)
				}
				return nil
			}

			w := tabwriter.NewWriter(flags.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, e := range archive.Entries() {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					e.Mode(), e.UncompressedSize,
					e.Modified.Format("2006-01-02 15:04"), e.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&argLong, "long", "l", false, "Show mode, size and modification time")

	argparser.AddCommand(cmd)
}
