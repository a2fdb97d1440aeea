// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command zipseek inspects and extracts ZIP archives whose entries
// are stored without compression.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var argparser = &cobra.Command{
	Use:   "zipseek {[flags]|SUBCOMMAND...}",
	Short: "Inspect and extract stored-only ZIP archives",

	SilenceErrors: true, // main() will handle this after .Execute() returns
	SilenceUsage:  true,
}

func main() {
	if err := argparser.Execute(); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
