// Copyright (c) 2026 The DSD Nexus Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of nexus-core.
//
// nexus-core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nexus-core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with nexus-core.  If not, see <https://www.gnu.org/licenses/>.

// Command nexusctl inspects and reads the SACD virtual filesystem from
// the command line: list a directory, stat a path, or dump a
// synthesised track's bytes to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nexusctl",
	Short: "Inspect and read the SACD virtual filesystem",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON vfs.Config file (required)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
