// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/lemon4ksan/zipseek"
)

func init() {
	var (
		argOffset int64
		argCount  int64
	)
	cmd := &cobra.Command{
		Use:   "cat [flags] ARCHIVE ENTRY... >OUT",
		Short: "Write entry data to stdout",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(flags *cobra.Command, args []string) error {
			archive, err := zipseek.Open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			for _, name := range args[1:] {
				r, err := archive.OpenEntry(name)
				if err != nil {
					return err
				}
				if err := catEntry(flags.OutOrStdout(), r, argOffset, argCount); err != nil {
					r.Close()
					return err
				}
				if err := r.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&argOffset, "offset", 0, "Start reading `N` bytes into each entry")
	cmd.Flags().Int64Var(&argCount, "count", -1, "Read at most `N` bytes per entry")

	argparser.AddCommand(cmd)
}

func catEntry(out io.Writer, r *zipseek.Reader, offset, count int64) error {
	if offset > 0 {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return err
		}
	}
	var src io.Reader = r
	if count >= 0 {
		src = io.LimitReader(r, count)
	}
	_, err := io.Copy(out, src)
	return err
}
