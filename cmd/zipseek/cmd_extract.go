// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lemon4ksan/zipseek"
)

func init() {
	var argDest string
	cmd := &cobra.Command{
		Use:   "extract [flags] ARCHIVE [ENTRY...]",
		Short: "Extract entries into a directory",
		Long: "Extract entries into a directory. With no ENTRY arguments the whole\n" +
			"archive is extracted. Entry names that would escape the destination\n" +
			"directory are rejected.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(flags *cobra.Command, args []string) error {
			archive, err := zipseek.Open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			entries := archive.Entries()
			if len(args) > 1 {
				entries = entries[:0]
				for _, name := range args[1:] {
					e, err := archive.Entry(name)
					if err != nil {
						return err
					}
					entries = append(entries, e)
				}
			}

			for _, e := range entries {
				if err := extractEntry(archive, e, argDest); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&argDest, "dest", "C", ".", "Extract into `DIR`")

	argparser.AddCommand(cmd)
}

func extractEntry(archive *zipseek.Archive, e *zipseek.Entry, dest string) error {
	rel := filepath.FromSlash(e.Name)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("entry name %q escapes the destination directory", e.Name)
	}
	target := filepath.Join(dest, rel)

	if e.IsDir() {
		return os.MkdirAll(target, e.Mode().Perm()|0700)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	r, err := archive.OpenInfo(e)
	if err != nil {
		return err
	}
	defer r.Close()

	perm := e.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("extract %q: %w", e.Name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if !e.Modified.IsZero() {
		if err := os.Chtimes(target, e.Modified, e.Modified); err != nil {
			return err
		}
	}
	return nil
}
